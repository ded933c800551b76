package conversation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config wires a Controller to its collaborators.
type Config struct {
	SessionID string
	Options   Options

	Input  SpeechInput
	Chat   ChatService
	Output SpeechOutput
	Log    InteractionLog

	Logger *logrus.Logger
	// Now stamps interaction records. Defaults to time.Now.
	Now func() time.Time
	// AfterFunc schedules delayed events. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func())
}

// Controller drives a Machine on a single goroutine. Collaborator calls run
// on their own goroutines and report back as events, so every state
// mutation happens inside Run.
type Controller struct {
	sessionID string
	machine   *Machine

	input  SpeechInput
	chat   ChatService
	output SpeechOutput
	log    InteractionLog

	logger    *logrus.Entry
	now       func() time.Time
	afterFunc func(d time.Duration, f func())

	events chan Event
	done   chan struct{}

	// owned by the Run goroutine
	captureCancel context.CancelFunc

	mu        sync.RWMutex
	snap      Snapshot
	observers []func(Snapshot)
}

func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	after := cfg.AfterFunc
	if after == nil {
		after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	m := NewMachine(cfg.Options)
	return &Controller{
		sessionID: cfg.SessionID,
		machine:   m,
		input:     cfg.Input,
		chat:      cfg.Chat,
		output:    cfg.Output,
		log:       cfg.Log,
		logger:    logger.WithField("session_id", cfg.SessionID),
		now:       now,
		afterFunc: after,
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
		snap:      m.Snapshot(),
	}
}

// Start begins a conversation. Ignored unless the controller is idle.
func (c *Controller) Start() { c.post(Event{Kind: EventStart}) }

// Reset clears the conversation from any state.
func (c *Controller) Reset() { c.post(Event{Kind: EventReset}) }

// Snapshot returns the last published observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Observe registers fn to receive every snapshot published after a state
// change. fn runs on the controller goroutine and must not block.
func (c *Controller) Observe(fn func(Snapshot)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Run processes events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	c.logger.Info("conversation controller started")
	for {
		select {
		case <-ctx.Done():
			c.abortCapture()
			c.logger.Info("conversation controller stopped")
			return ctx.Err()
		case ev := <-c.events:
			before := c.machine.State()
			cmds := c.machine.Handle(ev)
			after := c.machine.State()
			if before != after {
				c.logger.WithFields(logrus.Fields{
					"event": ev.Kind,
					"from":  before,
					"to":    after,
				}).Debug("state transition")
			}
			for _, cmd := range cmds {
				c.exec(ctx, cmd)
			}
			c.publish()
		}
	}
}

func (c *Controller) exec(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdStartCapture:
		c.startCapture(ctx, cmd.Epoch)
	case CmdAbortCapture:
		c.abortCapture()
	case CmdRequestReply:
		go c.requestReply(ctx, cmd)
	case CmdSpeak:
		go c.speak(ctx, cmd)
	case CmdLogInteraction:
		rec := Interaction{
			SessionID: c.sessionID,
			Name:      cmd.Name,
			Product:   cmd.Product,
			Timestamp: c.now().UTC(),
		}
		go c.record(ctx, rec)
	case CmdScheduleRestart:
		epoch := cmd.Epoch
		c.afterFunc(cmd.Delay, func() { c.post(Event{Kind: EventRestartDue, Epoch: epoch}) })
	case CmdScheduleReset:
		epoch := cmd.Epoch
		c.afterFunc(cmd.Delay, func() { c.post(Event{Kind: EventResetDue, Epoch: epoch}) })
	case CmdResetChat:
		go c.resetChat(ctx)
	default:
		c.logger.WithField("command", cmd.Kind).Warn("unknown command")
	}
}

func (c *Controller) startCapture(ctx context.Context, epoch uint64) {
	c.abortCapture()
	capCtx, cancel := context.WithCancel(ctx)
	c.captureCancel = cancel
	go func() {
		defer cancel()
		text, err := c.input.Listen(capCtx)
		if capCtx.Err() != nil {
			// aborted or shutting down; the machine already moved on
			return
		}
		if err == nil && text == "" {
			err = ErrNoTranscript
		}
		if err != nil {
			if !errors.Is(err, ErrNoTranscript) {
				c.logger.WithError(err).Warn("speech capture failed")
			}
			c.post(Event{Kind: EventCaptureEnded, Err: err, Epoch: epoch})
			return
		}
		c.post(Event{Kind: EventTranscript, Text: text, Epoch: epoch})
	}()
}

func (c *Controller) abortCapture() {
	if c.captureCancel != nil {
		c.captureCancel()
		c.captureCancel = nil
	}
}

func (c *Controller) requestReply(ctx context.Context, cmd Command) {
	start := time.Now()
	reply, err := c.chat.Reply(ctx, c.sessionID, cmd.Text)
	if err != nil {
		c.logger.WithError(err).Error("chat request failed")
		c.post(Event{Kind: EventReplyFailed, Err: err, Epoch: cmd.Epoch})
		return
	}
	metricReplyLatency.Observe(float64(time.Since(start).Milliseconds()))
	c.post(Event{Kind: EventReply, Text: reply, Epoch: cmd.Epoch})
}

func (c *Controller) speak(ctx context.Context, cmd Command) {
	var once sync.Once
	onStart := func() {
		once.Do(func() { c.post(Event{Kind: EventPlaybackStarted, Epoch: cmd.Epoch}) })
	}
	if err := c.output.Speak(ctx, cmd.Text, onStart); err != nil {
		c.logger.WithError(err).Error("speech synthesis failed")
		c.post(Event{Kind: EventPlaybackFailed, Err: err, Epoch: cmd.Epoch})
		return
	}
	c.post(Event{Kind: EventPlaybackEnded, Epoch: cmd.Epoch})
}

func (c *Controller) record(ctx context.Context, rec Interaction) {
	if c.log == nil {
		return
	}
	if err := c.log.Record(ctx, rec); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"name":    rec.Name,
			"product": rec.Product,
		}).Error("failed to log interaction")
		return
	}
	c.logger.WithFields(logrus.Fields{
		"name":    rec.Name,
		"product": rec.Product,
	}).Info("interaction logged")
}

func (c *Controller) resetChat(ctx context.Context) {
	if err := c.chat.Reset(ctx, c.sessionID); err != nil {
		c.logger.WithError(err).Warn("failed to reset chat history")
	}
}

func (c *Controller) post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) publish() {
	snap := c.machine.Snapshot()
	c.mu.Lock()
	c.snap = snap
	observers := slices.Clone(c.observers)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}
