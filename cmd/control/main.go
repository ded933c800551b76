package main

import (
    "context"
    "net"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/sirupsen/logrus"
    "github.com/spf13/pflag"
    "google.golang.org/grpc"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"

    "dealer/kiosk/internal/chat"
    "dealer/kiosk/internal/config"
    "dealer/kiosk/internal/control"
    "dealer/kiosk/internal/history"
    "dealer/kiosk/internal/interaction"
    "dealer/kiosk/internal/logging"
    "dealer/kiosk/internal/proxy"
)

func main() {
    _ = godotenv.Load()
    cfg := config.Load()

    addr := pflag.String("addr", cfg.Control.Addr, "gRPC listen addr")
    probeAddr := pflag.String("probe-addr", cfg.Control.ProbeAddr, "probes/metrics listen addr")
    pflag.Parse()

    logger := logging.New(cfg.Server.LogLevel, cfg.Server.LogFile)
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if err := run(ctx, cfg, *addr, *probeAddr, logger); err != nil {
        logger.WithError(err).Fatal("control plane failed")
    }
}

func run(ctx context.Context, cfg config.Config, addr, probeAddr string, logger *logrus.Logger) error {
    httpc, err := proxy.NewClient(cfg.HTTP.SocksProxy, time.Duration(cfg.HTTP.TimeoutSec)*time.Second)
    if err != nil {
        return err
    }
    hist, closeHistory, err := history.Open(ctx, cfg)
    if err != nil {
        return err
    }
    defer closeHistory()
    provider, err := chat.NewProvider(cfg, httpc)
    if err != nil {
        return err
    }
    recs, err := interaction.OpenStore(ctx, cfg)
    if err != nil {
        return err
    }
    defer recs.Close(context.Background())

    s := grpc.NewServer(grpc.UnaryInterceptor(control.LoggingInterceptor(logger)))
    control.Register(s, control.NewServer(chat.NewService(provider, hist, logger), recs, cfg.Kiosk.AdminSecret, logger))
    hs := health.NewServer()
    hs.SetServingStatus(control.ServiceName, healthpb.HealthCheckResponse_SERVING)
    healthpb.RegisterHealthServer(s, hs)

    // health endpoints
    go func() {
        mux := http.NewServeMux()
        mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok\n")) })
        mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
            if err := recs.Ping(r.Context()); err != nil {
                http.Error(w, err.Error(), http.StatusServiceUnavailable)
                return
            }
            _, _ = w.Write([]byte("ok\n"))
        })
        mux.Handle("/metrics", promhttp.Handler())
        logger.WithField("addr", probeAddr).Info("control probes/metrics listening")
        _ = http.ListenAndServe(probeAddr, mux)
    }()

    l, err := net.Listen("tcp", addr)
    if err != nil {
        return err
    }
    go func() {
        <-ctx.Done()
        hs.Shutdown()
        s.GracefulStop()
    }()
    logger.WithField("addr", addr).Info("control plane listening")
    return s.Serve(l)
}
