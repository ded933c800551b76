package loop

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"

    "dealer/kiosk/internal/conversation"
    "dealer/kiosk/internal/kioskws"
)

const evtDisconnected = "disconnected"

var ErrKioskDisconnected = errors.New("kiosk disconnected")

// Sender delivers a command to the kiosk of a session.
type Sender interface {
    SendJSON(ctx context.Context, sessionID string, v any) error
}

// Remote is the speech input and output of a browser kiosk. Each command
// carries a command id and the kiosk answers with events tagged the same way.
type Remote struct {
    sessionID string
    sender    Sender

    mu      sync.Mutex
    seq     int64
    pending map[string]chan kioskws.Message
}

var (
    _ conversation.SpeechInput  = (*Remote)(nil)
    _ conversation.SpeechOutput = (*Remote)(nil)
)

func NewRemote(sessionID string, sender Sender) *Remote {
    return &Remote{sessionID: sessionID, sender: sender, pending: make(map[string]chan kioskws.Message)}
}

func (r *Remote) expect() (string, chan kioskws.Message) {
    id := uuid.NewString()
    ch := make(chan kioskws.Message, 8)
    r.mu.Lock()
    r.pending[id] = ch
    r.mu.Unlock()
    return id, ch
}

func (r *Remote) forget(id string) {
    r.mu.Lock()
    delete(r.pending, id)
    r.mu.Unlock()
}

func (r *Remote) send(ctx context.Context, typ, cmdID, text string) error {
    r.mu.Lock()
    r.seq++
    seq := r.seq
    r.mu.Unlock()
    msg := kioskws.Message{
        Type:      typ,
        TsMs:      time.Now().UnixMilli(),
        SessionID: r.sessionID,
        Seq:       seq,
        CommandID: cmdID,
        Text:      text,
    }
    sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    return r.sender.SendJSON(sctx, r.sessionID, msg)
}

// Deliver routes a kiosk event to the call waiting on its command id.
// Events for unknown or finished commands are dropped.
func (r *Remote) Deliver(msg kioskws.Message) bool {
    r.mu.Lock()
    ch, ok := r.pending[msg.CommandID]
    r.mu.Unlock()
    if !ok {
        return false
    }
    select {
    case ch <- msg:
        return true
    default:
        return false
    }
}

// Disconnect fails every pending command.
func (r *Remote) Disconnect() {
    r.mu.Lock()
    defer r.mu.Unlock()
    for _, ch := range r.pending {
        select {
        case ch <- kioskws.Message{Type: evtDisconnected}:
        default:
        }
    }
}

func (r *Remote) Listen(ctx context.Context) (string, error) {
    id, ch := r.expect()
    defer r.forget(id)
    if err := r.send(ctx, kioskws.CmdStartListening, id, ""); err != nil {
        return "", fmt.Errorf("start listening: %w", err)
    }
    for {
        select {
        case <-ctx.Done():
            _ = r.send(context.Background(), kioskws.CmdAbortListening, id, "")
            return "", ctx.Err()
        case msg := <-ch:
            switch msg.Type {
            case kioskws.EvtTranscript:
                if msg.Text == "" {
                    return "", conversation.ErrNoTranscript
                }
                return msg.Text, nil
            case kioskws.EvtCaptureEnded:
                if msg.Error != "" {
                    return "", fmt.Errorf("kiosk capture: %s", msg.Error)
                }
                return "", conversation.ErrNoTranscript
            case evtDisconnected:
                return "", ErrKioskDisconnected
            }
        }
    }
}

func (r *Remote) Speak(ctx context.Context, text string, onStart func()) error {
    id, ch := r.expect()
    defer r.forget(id)
    if err := r.send(ctx, kioskws.CmdSpeak, id, text); err != nil {
        return fmt.Errorf("speak: %w", err)
    }
    started := false
    begin := func() {
        if !started {
            started = true
            onStart()
        }
    }
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case msg := <-ch:
            switch msg.Type {
            case kioskws.EvtPlaybackStarted:
                begin()
            case kioskws.EvtPlaybackEnded:
                begin()
                return nil
            case kioskws.EvtPlaybackFailed:
                return fmt.Errorf("kiosk playback: %s", msg.Error)
            case evtDisconnected:
                return ErrKioskDisconnected
            }
        }
    }
}
