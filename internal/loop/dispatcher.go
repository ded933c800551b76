package loop

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/sirupsen/logrus"

    "dealer/kiosk/internal/conversation"
    "dealer/kiosk/internal/events"
    "dealer/kiosk/internal/interaction"
    "dealer/kiosk/internal/kioskws"
    "dealer/kiosk/internal/store"
)

var ErrUnknownSession = errors.New("unknown session")

// Deps are the collaborators shared by every session's controller.
// A positive IdleTTL stops controllers that sat idle without a kiosk for
// that long.
type Deps struct {
    Sender  Sender
    Chat    conversation.ChatService
    Log     *interaction.Service
    Store   *store.Store
    Bus     *events.Bus
    Options conversation.Options
    IdleTTL time.Duration
    Logger  *logrus.Logger
}

type session struct {
    ctrl     *conversation.Controller
    remote   *Remote
    cancel   context.CancelFunc
    done     chan struct{}
    lastSeen time.Time
}

// Dispatcher owns one conversation controller per kiosk session and routes
// kiosk websocket messages to it.
type Dispatcher struct {
    deps Deps
    ctx  context.Context
    now  func() time.Time

    mu       sync.Mutex
    sessions map[string]*session

    stop     chan struct{}
    stopOnce sync.Once
}

var _ kioskws.Handler = (*Dispatcher)(nil)

// New returns a Dispatcher whose controllers live until ctx is cancelled
// or Close is called.
func New(ctx context.Context, deps Deps) *Dispatcher {
    if deps.Logger == nil {
        deps.Logger = logrus.StandardLogger()
    }
    d := &Dispatcher{
        deps:     deps,
        ctx:      ctx,
        now:      time.Now,
        sessions: make(map[string]*session),
        stop:     make(chan struct{}),
    }
    if deps.IdleTTL > 0 {
        go d.sweepLoop(deps.IdleTTL)
    }
    return d
}

// Ensure returns the running controller for sessionID, creating it on first
// use.
func (d *Dispatcher) Ensure(sessionID string) (*conversation.Controller, error) {
    d.mu.Lock()
    defer d.mu.Unlock()
    if s, ok := d.sessions[sessionID]; ok {
        s.lastSeen = d.now()
        return s.ctrl, nil
    }
    if d.deps.Store != nil && d.deps.Store.GetSession(sessionID) == nil {
        return nil, ErrUnknownSession
    }

    remote := NewRemote(sessionID, d.deps.Sender)
    var log conversation.InteractionLog
    if d.deps.Log != nil {
        log = LocalLog{Service: d.deps.Log, OnRecorded: func(interaction.Record) {
            if d.deps.Store != nil {
                d.deps.Store.CountConversation(sessionID)
            }
        }}
    }
    ctrl := conversation.NewController(conversation.Config{
        SessionID: sessionID,
        Options:   d.deps.Options,
        Input:     remote,
        Chat:      d.deps.Chat,
        Output:    remote,
        Log:       log,
        Logger:    d.deps.Logger,
    })

    last := ctrl.Snapshot().State
    ctrl.Observe(func(snap conversation.Snapshot) {
        if d.deps.Bus != nil {
            d.deps.Bus.Publish(sessionID, "snapshot", map[string]any{"snapshot": snap})
        }
        if snap.State != last {
            if d.deps.Store != nil {
                d.deps.Store.AppendEvent(sessionID, "state_changed", map[string]any{"from": last.String(), "to": snap.State.String()})
            }
            last = snap.State
        }
    })

    ctx, cancel := context.WithCancel(d.ctx)
    s := &session{ctrl: ctrl, remote: remote, cancel: cancel, done: make(chan struct{}), lastSeen: d.now()}
    d.sessions[sessionID] = s
    go func() {
        defer close(s.done)
        _ = ctrl.Run(ctx)
    }()
    return ctrl, nil
}

func (d *Dispatcher) get(sessionID string) *session {
    d.mu.Lock()
    defer d.mu.Unlock()
    s := d.sessions[sessionID]
    if s != nil {
        s.lastSeen = d.now()
    }
    return s
}

// Active reports how many sessions have a running controller.
func (d *Dispatcher) Active() int {
    d.mu.Lock()
    defer d.mu.Unlock()
    return len(d.sessions)
}

func (d *Dispatcher) Start(sessionID string) error {
    ctrl, err := d.Ensure(sessionID)
    if err != nil {
        return err
    }
    ctrl.Start()
    return nil
}

func (d *Dispatcher) Reset(sessionID string) error {
    ctrl, err := d.Ensure(sessionID)
    if err != nil {
        return err
    }
    ctrl.Reset()
    return nil
}

// Snapshot returns the session's controller state, false if no controller
// has been created for it.
func (d *Dispatcher) Snapshot(sessionID string) (conversation.Snapshot, bool) {
    s := d.get(sessionID)
    if s == nil {
        return conversation.Snapshot{}, false
    }
    return s.ctrl.Snapshot(), true
}

func (d *Dispatcher) OnConnect(sessionID string) {
    if _, err := d.Ensure(sessionID); err != nil {
        d.deps.Logger.WithError(err).WithField("session_id", sessionID).Warn("kiosk connected to unknown session")
    }
}

// OnMessage handles a kiosk message. Button presses map to start and reset;
// everything else answers a pending command.
func (d *Dispatcher) OnMessage(sessionID string, msg kioskws.Message) {
    switch msg.Type {
    case kioskws.MsgStart:
        _ = d.Start(sessionID)
        return
    case kioskws.MsgReset:
        _ = d.Reset(sessionID)
        return
    case kioskws.MsgHello:
        _, _ = d.Ensure(sessionID)
        return
    }
    s := d.get(sessionID)
    if s == nil {
        return
    }
    if !s.remote.Deliver(msg) {
        d.deps.Logger.WithFields(logrus.Fields{
            "session_id": sessionID,
            "type":       msg.Type,
            "command_id": msg.CommandID,
        }).Debug("dropping unmatched kiosk message")
    }
}

// OnDisconnect fails pending commands and stops the session's controller.
// The chat history is cleared so a reconnecting kiosk starts fresh.
func (d *Dispatcher) OnDisconnect(sessionID string) {
    d.evict(sessionID, "kiosk_disconnected")
}

// evict removes the session's controller, waits for it to stop and resets
// its chat history.
func (d *Dispatcher) evict(sessionID, reason string) bool {
    d.mu.Lock()
    s := d.sessions[sessionID]
    delete(d.sessions, sessionID)
    d.mu.Unlock()
    if s == nil {
        return false
    }
    s.remote.Disconnect()
    s.cancel()
    <-s.done

    if d.deps.Chat != nil {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        if err := d.deps.Chat.Reset(ctx, sessionID); err != nil {
            d.deps.Logger.WithError(err).WithField("session_id", sessionID).Warn("failed to reset chat history")
        }
        cancel()
    }
    if d.deps.Store != nil {
        d.deps.Store.AppendEvent(sessionID, "controller_stopped", map[string]any{"reason": reason})
    }
    d.deps.Logger.WithFields(logrus.Fields{"session_id": sessionID, "reason": reason}).Info("conversation controller stopped")
    return true
}

type connChecker interface {
    Connected(sessionID string) bool
}

// Sweep stops controllers that are idle, have no kiosk attached and were
// not touched for ttl. It returns the number stopped.
func (d *Dispatcher) Sweep(ttl time.Duration) int {
    cutoff := d.now().Add(-ttl)
    conn, _ := d.deps.Sender.(connChecker)

    d.mu.Lock()
    var stale []string
    for id, s := range d.sessions {
        if s.lastSeen.After(cutoff) || s.ctrl.Snapshot().State != conversation.StateIdle {
            continue
        }
        if conn != nil && conn.Connected(id) {
            continue
        }
        stale = append(stale, id)
    }
    d.mu.Unlock()

    n := 0
    for _, id := range stale {
        if d.evict(id, "idle") {
            n++
        }
    }
    return n
}

func (d *Dispatcher) sweepLoop(ttl time.Duration) {
    tick := time.NewTicker(ttl / 2)
    defer tick.Stop()
    for {
        select {
        case <-d.ctx.Done():
            return
        case <-d.stop:
            return
        case <-tick.C:
            if n := d.Sweep(ttl); n > 0 {
                d.deps.Logger.WithField("stopped", n).Debug("idle sweep")
            }
        }
    }
}

// Close stops every controller and waits for them to exit.
func (d *Dispatcher) Close() {
    d.stopOnce.Do(func() { close(d.stop) })
    d.mu.Lock()
    sessions := d.sessions
    d.sessions = make(map[string]*session)
    d.mu.Unlock()
    for _, s := range sessions {
        s.cancel()
        <-s.done
    }
}
