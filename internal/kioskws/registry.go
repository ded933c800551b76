package kioskws

import (
    "context"
    "encoding/json"
    "errors"
    "sync"

    ws "nhooyr.io/websocket"
)

// ErrNotConnected is returned when no kiosk is attached to the session.
var ErrNotConnected = errors.New("kiosk not connected")

// Registry keeps at most one kiosk connection per session.
type Registry struct {
    mu    sync.Mutex
    conns map[string]*ws.Conn
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]*ws.Conn)} }

// Replace sets the connection for a session and closes the previous one if present.
func (r *Registry) Replace(sessionID string, c *ws.Conn) (prevClosed bool) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if old, ok := r.conns[sessionID]; ok && old != nil {
        _ = old.Close(ws.StatusNormalClosure, "replaced")
        prevClosed = true
    }
    r.conns[sessionID] = c
    return
}

func (r *Registry) Get(sessionID string) *ws.Conn {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.conns[sessionID]
}

// Remove drops c if it is still the session's connection. A connection that
// was replaced leaves its successor in place.
func (r *Registry) Remove(sessionID string, c *ws.Conn) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.conns[sessionID] == c {
        delete(r.conns, sessionID)
    }
}

func (r *Registry) Connected(sessionID string) bool {
    return r.Get(sessionID) != nil
}

// SendJSON writes v to the session's kiosk.
func (r *Registry) SendJSON(ctx context.Context, sessionID string, v any) error {
    c := r.Get(sessionID)
    if c == nil {
        return ErrNotConnected
    }
    b, err := json.Marshal(v)
    if err != nil {
        return err
    }
    return c.Write(ctx, ws.MessageText, b)
}
