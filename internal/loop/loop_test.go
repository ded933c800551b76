package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealer/kiosk/internal/chat"
	"dealer/kiosk/internal/conversation"
	"dealer/kiosk/internal/events"
	"dealer/kiosk/internal/history"
	"dealer/kiosk/internal/interaction"
	"dealer/kiosk/internal/kioskws"
	"dealer/kiosk/internal/logging"
	"dealer/kiosk/internal/store"
	"dealer/kiosk/internal/types"
)

type fakeSender struct {
	out chan kioskws.Message
	err error
}

func newFakeSender() *fakeSender { return &fakeSender{out: make(chan kioskws.Message, 64)} }

func (f *fakeSender) SendJSON(_ context.Context, _ string, v any) error {
	if f.err != nil {
		return f.err
	}
	f.out <- v.(kioskws.Message)
	return nil
}

// next returns the next command of type typ, skipping others.
func (f *fakeSender) next(t *testing.T, typ string) kioskws.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-f.out:
			if msg.Type == typ {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s command sent", typ)
		}
	}
}

type scriptedChat struct {
	mu      sync.Mutex
	replies []string
	resets  int
}

func (c *scriptedChat) Reply(context.Context, string, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func (c *scriptedChat) Reset(context.Context, string) error {
	c.mu.Lock()
	c.resets++
	c.mu.Unlock()
	return nil
}

func (c *scriptedChat) resetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

var fastOptions = conversation.Options{
	ResetDelay:   10 * time.Millisecond,
	RestartDelay: 5 * time.Millisecond,
	RearmDelay:   5 * time.Millisecond,
}

func newDispatcher(t *testing.T, sender Sender, ch conversation.ChatService) (*Dispatcher, *store.Store, *interaction.MemoryStore) {
	t.Helper()
	st := store.New()
	require.NoError(t, st.CreateSession(&types.Session{ID: "k"}))
	recs := interaction.NewMemoryStore()
	d := New(context.Background(), Deps{
		Sender:  sender,
		Chat:    ch,
		Log:     interaction.NewService(recs, nil, logging.Discard()),
		Store:   st,
		Bus:     events.NewBus(64),
		Options: fastOptions,
		Logger:  logging.Discard(),
	})
	t.Cleanup(d.Close)
	return d, st, recs
}

func TestTurnOverWebsocketAndRelisten(t *testing.T) {
	sender := newFakeSender()
	d, st, _ := newDispatcher(t, sender, &scriptedChat{replies: []string{"Prazer! Qual é o seu nome?"}})

	require.NoError(t, d.Start("k"))
	listen := sender.next(t, kioskws.CmdStartListening)
	d.OnMessage("k", kioskws.Message{Type: kioskws.EvtTranscript, CommandID: listen.CommandID, Text: "Olá"})

	speak := sender.next(t, kioskws.CmdSpeak)
	assert.Equal(t, "Prazer! Qual é o seu nome?", speak.Text)
	d.OnMessage("k", kioskws.Message{Type: kioskws.EvtPlaybackStarted, CommandID: speak.CommandID})
	assert.Eventually(t, func() bool {
		snap, _ := d.Snapshot("k")
		return snap.Speaking
	}, time.Second, 5*time.Millisecond)
	d.OnMessage("k", kioskws.Message{Type: kioskws.EvtPlaybackEnded, CommandID: speak.CommandID})

	again := sender.next(t, kioskws.CmdStartListening)
	assert.NotEqual(t, listen.CommandID, again.CommandID)
	snap, ok := d.Snapshot("k")
	require.True(t, ok)
	assert.Len(t, snap.Turns, 2)

	var sawState bool
	for _, ev := range st.ListEvents("k") {
		if ev.Type == "state_changed" {
			sawState = true
		}
	}
	assert.True(t, sawState)
}

func TestTerminationLogsInteraction(t *testing.T) {
	sender := newFakeSender()
	ch := &scriptedChat{replies: []string{"Obrigado! A entrada para o showroom já está liberada."}}
	d, st, recs := newDispatcher(t, sender, ch)

	require.NoError(t, d.Start("k"))
	listen := sender.next(t, kioskws.CmdStartListening)
	d.OnMessage("k", kioskws.Message{Type: kioskws.EvtTranscript, CommandID: listen.CommandID, Text: "Quero ver tratores"})
	speak := sender.next(t, kioskws.CmdSpeak)
	d.OnMessage("k", kioskws.Message{Type: kioskws.EvtPlaybackEnded, CommandID: speak.CommandID})

	assert.Eventually(t, func() bool {
		all, _ := recs.List(context.Background(), 10)
		return len(all) == 1 && st.GetSession("k").Conversations == 1
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		snap, _ := d.Snapshot("k")
		return snap.State == conversation.StateIdle && ch.resetCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDisconnectStopsController(t *testing.T) {
	sender := newFakeSender()
	ch := &scriptedChat{}
	d, st, _ := newDispatcher(t, sender, ch)

	require.NoError(t, d.Start("k"))
	sender.next(t, kioskws.CmdStartListening)
	d.OnDisconnect("k")

	_, ok := d.Snapshot("k")
	assert.False(t, ok)
	assert.Zero(t, d.Active())
	assert.Equal(t, 1, ch.resetCount())
	evs := st.ListEvents("k")
	require.NotEmpty(t, evs)
	assert.Equal(t, "controller_stopped", evs[len(evs)-1].Type)

	require.NoError(t, d.Start("k"))
	sender.next(t, kioskws.CmdStartListening)
	assert.Equal(t, 1, d.Active())
}

type connectedSender struct{ *fakeSender }

func (connectedSender) Connected(string) bool { return true }

func TestSweepStopsIdleControllers(t *testing.T) {
	ch := &scriptedChat{}
	d, _, _ := newDispatcher(t, newFakeSender(), ch)
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	_, err := d.Ensure("k")
	require.NoError(t, err)
	assert.Zero(t, d.Sweep(time.Minute), "recently used")

	d.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Equal(t, 1, d.Sweep(time.Minute))
	assert.Zero(t, d.Active())
	assert.Equal(t, 1, ch.resetCount())
}

func TestSweepKeepsBusyOrConnectedSessions(t *testing.T) {
	sender := newFakeSender()
	d, _, _ := newDispatcher(t, sender, &scriptedChat{})
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	require.NoError(t, d.Start("k"))
	sender.next(t, kioskws.CmdStartListening)
	require.Eventually(t, func() bool {
		snap, _ := d.Snapshot("k")
		return snap.State == conversation.StateListening
	}, time.Second, 5*time.Millisecond)
	d.now = func() time.Time { return base.Add(time.Hour) }
	assert.Zero(t, d.Sweep(time.Minute), "listening")

	c, _, _ := newDispatcher(t, connectedSender{newFakeSender()}, &scriptedChat{})
	c.now = func() time.Time { return base }
	_, err := c.Ensure("k")
	require.NoError(t, err)
	c.now = func() time.Time { return base.Add(time.Hour) }
	assert.Zero(t, c.Sweep(time.Minute), "kiosk attached")
	assert.Equal(t, 1, c.Active())
}

func TestUnknownSession(t *testing.T) {
	d, _, _ := newDispatcher(t, newFakeSender(), &scriptedChat{})
	assert.ErrorIs(t, d.Start("nope"), ErrUnknownSession)
	_, ok := d.Snapshot("nope")
	assert.False(t, ok)
}

func TestRemoteListenOutcomes(t *testing.T) {
	sender := newFakeSender()
	r := NewRemote("k", sender)

	done := make(chan error, 1)
	go func() {
		_, err := r.Listen(context.Background())
		done <- err
	}()
	cmd := sender.next(t, kioskws.CmdStartListening)
	require.True(t, r.Deliver(kioskws.Message{Type: kioskws.EvtCaptureEnded, CommandID: cmd.CommandID}))
	assert.ErrorIs(t, <-done, conversation.ErrNoTranscript)

	assert.False(t, r.Deliver(kioskws.Message{Type: kioskws.EvtTranscript, CommandID: cmd.CommandID}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, err := r.Listen(ctx)
		done <- err
	}()
	sender.next(t, kioskws.CmdStartListening)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	abort := sender.next(t, kioskws.CmdAbortListening)
	assert.NotEmpty(t, abort.CommandID)
}

func TestRemoteSpeakFailure(t *testing.T) {
	sender := newFakeSender()
	r := NewRemote("k", sender)
	started := 0
	done := make(chan error, 1)
	go func() { done <- r.Speak(context.Background(), "oi", func() { started++ }) }()
	cmd := sender.next(t, kioskws.CmdSpeak)
	r.Deliver(kioskws.Message{Type: kioskws.EvtPlaybackFailed, CommandID: cmd.CommandID, Error: "autoplay blocked"})
	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "autoplay blocked")
	assert.Equal(t, 0, started)
}

func TestRemoteNotConnected(t *testing.T) {
	r := NewRemote("k", &fakeSender{err: kioskws.ErrNotConnected})
	_, err := r.Listen(context.Background())
	assert.ErrorIs(t, err, kioskws.ErrNotConnected)
}

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Complete(_ context.Context, _ string, msgs []history.Message) (string, error) {
	return "Qual é o seu nome? " + msgs[len(msgs)-1].Text, nil
}

func TestLocalChatAdapter(t *testing.T) {
	hist := history.NewMemoryStore()
	c := LocalChat{Service: chat.NewService(echoProvider{}, hist, logging.Discard())}
	reply, err := c.Reply(context.Background(), "k", "oi")
	require.NoError(t, err)
	assert.Equal(t, "Qual é o seu nome? oi", reply)

	require.NoError(t, c.Reset(context.Background(), "k"))
	msgs, _ := hist.List(context.Background(), "k")
	assert.Empty(t, msgs)
}
