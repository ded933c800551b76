// Package kioskws accepts the websocket of a browser kiosk and relays its
// messages to the server-side conversation loop.
package kioskws

import (
    "context"
    "encoding/json"
    "net/http"
    "time"

    "github.com/sirupsen/logrus"
    ws "nhooyr.io/websocket"

    "dealer/kiosk/internal/auth"
    "dealer/kiosk/internal/config"
    "dealer/kiosk/internal/events"
    "dealer/kiosk/internal/store"
)

// Message is the envelope used in both directions.
type Message struct {
    Type      string         `json:"type"`
    TsMs      int64          `json:"ts_ms"`
    SessionID string         `json:"session_id"`
    Seq       int64          `json:"seq"`
    CommandID string         `json:"command_id,omitempty"`
    Text      string         `json:"text,omitempty"`
    Error     string         `json:"error,omitempty"`
    Payload   map[string]any `json:"payload,omitempty"`
}

// Handler receives the lifecycle and messages of kiosk connections.
type Handler interface {
    OnConnect(sessionID string)
    OnMessage(sessionID string, msg Message)
    OnDisconnect(sessionID string)
}

type Server struct {
    Cfg     config.Config
    Store   *store.Store
    Reg     *Registry
    Bus     *events.Bus
    Handler Handler
    Logger  *logrus.Logger
}

func NewServer(cfg config.Config, st *store.Store, reg *Registry, bus *events.Bus, h Handler, logger *logrus.Logger) *Server {
    return &Server{Cfg: cfg, Store: st, Reg: reg, Bus: bus, Handler: h, Logger: logger}
}

// token reads the bearer header, falling back to the token query parameter
// since browsers cannot set headers on a websocket handshake.
func token(r *http.Request) string {
    if tok, ok := auth.BearerToken(r.Header.Get("Authorization")); ok {
        return tok
    }
    return r.URL.Query().Get("token")
}

func (s *Server) HandleKioskWS(w http.ResponseWriter, r *http.Request) {
    sessionID := r.URL.Query().Get("session_id")
    if sessionID == "" {
        http.Error(w, "missing session_id", http.StatusBadRequest)
        return
    }
    if s.Store.GetSession(sessionID) == nil {
        http.Error(w, "unknown session", http.StatusNotFound)
        return
    }
    tok := token(r)
    if tok == "" {
        http.Error(w, "missing bearer token", http.StatusUnauthorized)
        return
    }
    if s.Cfg.Kiosk.TokenSecret == "" {
        http.Error(w, "kiosk auth not configured", http.StatusUnauthorized)
        return
    }
    if _, _, err := auth.ValidateKioskToken(s.Cfg.Kiosk.TokenSecret, tok, sessionID, time.Now(), s.Cfg.Kiosk.TokenSkewSecs); err != nil {
        http.Error(w, "invalid token", http.StatusUnauthorized)
        return
    }

    c, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
    if err != nil {
        s.Logger.WithError(err).Warn("ws accept failed")
        return
    }
    log := s.Logger.WithField("session_id", sessionID)
    if s.Reg.Replace(sessionID, c) {
        s.Store.AppendEvent(sessionID, "kiosk_replaced", nil)
    }
    s.Store.SetKioskConnected(sessionID, true)
    s.Store.AppendEvent(sessionID, "kiosk_connected", nil)
    log.Info("kiosk connected")
    if s.Handler != nil {
        s.Handler.OnConnect(sessionID)
    }

    ctx, cancel := context.WithCancel(r.Context())
    defer cancel()
    if s.Bus != nil {
        go s.forward(ctx, c, sessionID)
    }

    for {
        typ, data, err := c.Read(ctx)
        if err != nil {
            break
        }
        if typ != ws.MessageText && typ != ws.MessageBinary {
            continue
        }
        var msg Message
        if err := json.Unmarshal(data, &msg); err != nil {
            s.Store.AppendEvent(sessionID, "kiosk_msg_invalid", map[string]any{"error": err.Error()})
            continue
        }
        msg.SessionID = sessionID
        payload := map[string]any{"ts_ms": msg.TsMs, "seq": msg.Seq}
        if msg.CommandID != "" {
            payload["command_id"] = msg.CommandID
        }
        if msg.Error != "" {
            payload["error"] = msg.Error
        }
        s.Store.AppendEvent(sessionID, "kiosk_"+msg.Type, payload)
        if s.Handler != nil {
            s.Handler.OnMessage(sessionID, msg)
        }
    }
    _ = c.Close(ws.StatusNormalClosure, "done")
    s.Reg.Remove(sessionID, c)
    if !s.Reg.Connected(sessionID) {
        s.Store.SetKioskConnected(sessionID, false)
        if s.Handler != nil {
            s.Handler.OnDisconnect(sessionID)
        }
    }
    s.Store.AppendEvent(sessionID, "kiosk_disconnected", nil)
    log.Info("kiosk disconnected")
}

// forward pushes bus events for the session to this connection as
// "event" messages.
func (s *Server) forward(ctx context.Context, c *ws.Conn, sessionID string) {
    ch, unsubscribe := s.Bus.Subscribe(sessionID)
    defer unsubscribe()
    for {
        select {
        case <-ctx.Done():
            return
        case evt, ok := <-ch:
            if !ok {
                return
            }
            out := Message{
                Type:      MsgEvent,
                TsMs:      evt.Timestamp.UnixMilli(),
                SessionID: sessionID,
                Payload:   map[string]any{"type": evt.Type, "data": evt.Payload},
            }
            b, err := json.Marshal(out)
            if err != nil {
                continue
            }
            wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
            err = c.Write(wctx, ws.MessageText, b)
            cancel()
            if err != nil {
                return
            }
        }
    }
}
