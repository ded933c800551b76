package api

import (
    "net/http"
    "time"

    "github.com/gorilla/mux"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/sirupsen/logrus"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
    Name: "http_requests_total",
    Help: "HTTP requests by route and method",
}, []string{"route", "method"})

func NewRouter(h *Handlers) http.Handler {
    router := mux.NewRouter()

    router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    }).Methods("GET")
    router.HandleFunc("/readyz", h.HandleReady).Methods("GET")
    router.Handle("/metrics", promhttp.Handler()).Methods("GET")

    router.HandleFunc("/chat", h.HandleChat).Methods("POST")
    router.HandleFunc("/tts", h.HandleTTS).Methods("POST")
    router.HandleFunc("/interaction", h.HandleInteraction).Methods("POST")
    router.HandleFunc("/interactions", h.HandleListInteractions).Methods("GET")
    router.HandleFunc("/door", h.HandleDoor).Methods("GET")

    router.HandleFunc("/sessions", h.HandleCreateSession).Methods("POST")
    router.HandleFunc("/sessions", h.HandleListSessions).Methods("GET")
    router.HandleFunc("/sessions/{id}/events", h.HandleListEvents).Methods("GET")
    router.HandleFunc("/sessions/{id}/state", h.HandleState).Methods("GET")
    router.HandleFunc("/sessions/{id}/start", h.HandleStart).Methods("POST")
    router.HandleFunc("/sessions/{id}/reset", h.HandleReset).Methods("POST")
    router.HandleFunc("/sessions/{id}/kiosk-token", h.HandleMintKioskToken).Methods("POST")

    if h.KioskWS != nil {
        router.HandleFunc("/ws/kiosk", h.KioskWS).Methods("GET")
    }

    router.Use(loggingMiddleware(h.Logger))

    return router
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            start := time.Now()

            next.ServeHTTP(w, r)

            route := r.URL.Path
            if cur := mux.CurrentRoute(r); cur != nil {
                if tpl, err := cur.GetPathTemplate(); err == nil {
                    route = tpl
                }
            }
            httpRequests.WithLabelValues(route, r.Method).Inc()
            logger.WithFields(logrus.Fields{
                "method":   r.Method,
                "path":     r.URL.Path,
                "duration": time.Since(start),
                "remote":   r.RemoteAddr,
            }).Debug("HTTP request processed")
        })
    }
}
