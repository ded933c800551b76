package conversation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealer/kiosk/internal/chat"
	"dealer/kiosk/internal/history"
)

type scriptedInput struct {
	mu          sync.Mutex
	transcripts []string
}

func (s *scriptedInput) Listen(ctx context.Context) (string, error) {
	s.mu.Lock()
	if len(s.transcripts) > 0 {
		t := s.transcripts[0]
		s.transcripts = s.transcripts[1:]
		s.mu.Unlock()
		return t, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return "", ctx.Err()
}

type scriptedChat struct {
	mu      sync.Mutex
	replies []string
	err     error
	gate    chan struct{}
	resets  int
	asked   []string
}

func (s *scriptedChat) Reply(ctx context.Context, sessionID, text string) (string, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, text)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "Pode repetir?", nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func (s *scriptedChat) Reset(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
	return nil
}

func (s *scriptedChat) resetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

type instantOutput struct {
	mu     sync.Mutex
	spoken []string
	err    error
}

func (o *instantOutput) Speak(ctx context.Context, text string, onStart func()) error {
	o.mu.Lock()
	o.spoken = append(o.spoken, text)
	err := o.err
	o.mu.Unlock()
	if err != nil {
		return err
	}
	onStart()
	return nil
}

type memoryLog struct {
	mu   sync.Mutex
	recs []Interaction
}

func (l *memoryLog) Record(ctx context.Context, in Interaction) error {
	l.mu.Lock()
	l.recs = append(l.recs, in)
	l.mu.Unlock()
	return nil
}

func (l *memoryLog) records() []Interaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Interaction(nil), l.recs...)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fastOptions() Options {
	return Options{ResetDelay: 20 * time.Millisecond, RestartDelay: time.Millisecond, RearmDelay: time.Millisecond}
}

func runController(t *testing.T, cfg Config) (*Controller, context.CancelFunc) {
	t.Helper()
	cfg.Logger = quietLogger()
	cfg.Options = fastOptions()
	c := NewController(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	t.Cleanup(cancel)
	return c, cancel
}

func TestControllerFullConversation(t *testing.T) {
	input := &scriptedInput{transcripts: []string{"Bom dia", "Giba", "Vigilância para Agro"}}
	bot := &scriptedChat{replies: []string{
		"Bom dia! Eu sou a IA da Dealer. Qual é o seu nome?",
		"Prazer, Giba! Qual tipo de produto você tem interesse em ver?",
		"Ótimo! Vou chamar o Giba e o Alan. A entrada para o showroom já está liberada.",
	}}
	out := &instantOutput{}
	logs := &memoryLog{}
	fixed := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	c, _ := runController(t, Config{
		SessionID: "kiosk",
		Input:     input,
		Chat:      bot,
		Output:    out,
		Log:       logs,
		Now:       func() time.Time { return fixed },
	})
	c.Start()

	require.Eventually(t, func() bool { return len(logs.records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	rec := logs.records()[0]
	assert.Equal(t, "Giba", rec.Name)
	assert.Equal(t, "Vigilância para Agro", rec.Product)
	assert.Equal(t, fixed, rec.Timestamp)
	assert.Equal(t, "kiosk", rec.SessionID)

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.State == StateIdle && len(s.Turns) == 0 && bot.resetCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, SessionContext{}, c.Snapshot().Context)

	// no further capture after termination
	assert.Never(t, func() bool { return c.Snapshot().State != StateIdle }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Len(t, logs.records(), 1)
}

func TestControllerChatFailure(t *testing.T) {
	bot := &scriptedChat{err: errors.New("connection refused")}
	logs := &memoryLog{}
	c, _ := runController(t, Config{
		SessionID: "kiosk",
		Input:     &scriptedInput{transcripts: []string{"oi"}},
		Chat:      bot,
		Output:    &instantOutput{},
		Log:       logs,
	})
	c.Start()

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.State == StateIdle && len(s.Turns) == 1
	}, 2*time.Second, 5*time.Millisecond)
	s := c.Snapshot()
	assert.False(t, s.Processing)
	assert.False(t, s.Speaking)
	assert.Empty(t, logs.records())
}

func TestControllerSynthesisFailure(t *testing.T) {
	c, _ := runController(t, Config{
		SessionID: "kiosk",
		Input:     &scriptedInput{transcripts: []string{"oi"}},
		Chat:      &scriptedChat{replies: []string{"Olá!"}},
		Output:    &instantOutput{err: errors.New("tts status=500")},
		Log:       &memoryLog{},
	})
	c.Start()

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.State == StateIdle && len(s.Turns) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, c.Snapshot().Speaking)
}

func TestControllerResetDropsInFlightReply(t *testing.T) {
	bot := &scriptedChat{replies: []string{"Qual é o seu nome?"}, gate: make(chan struct{})}
	c, _ := runController(t, Config{
		SessionID: "kiosk",
		Input:     &scriptedInput{transcripts: []string{"oi"}},
		Chat:      bot,
		Output:    &instantOutput{},
		Log:       &memoryLog{},
	})
	c.Start()
	require.Eventually(t, func() bool { return c.Snapshot().State == StateProcessing }, 2*time.Second, 5*time.Millisecond)

	c.Reset()
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.State == StateIdle && len(s.Turns) == 0 && bot.resetCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	close(bot.gate)
	assert.Never(t, func() bool { return len(c.Snapshot().Turns) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

type heldProvider struct {
	entered chan struct{}
	release chan struct{}
}

func (p *heldProvider) Name() string { return "held" }

func (p *heldProvider) Complete(context.Context, string, []history.Message) (string, error) {
	close(p.entered)
	<-p.release
	return "Qual é o seu nome?", nil
}

type serviceChat struct{ svc *chat.Service }

func (s serviceChat) Reply(ctx context.Context, sessionID, text string) (string, error) {
	res, err := s.svc.Reply(ctx, sessionID, text)
	return res.Reply, err
}

func (s serviceChat) Reset(ctx context.Context, sessionID string) error {
	return s.svc.Reset(ctx, sessionID)
}

func TestControllerResetClearsHistoryOfInFlightReply(t *testing.T) {
	hist := history.NewMemoryStore()
	provider := &heldProvider{entered: make(chan struct{}), release: make(chan struct{})}
	svc := chat.NewService(provider, hist, quietLogger())
	c, _ := runController(t, Config{
		SessionID: "kiosk",
		Input:     &scriptedInput{transcripts: []string{"oi"}},
		Chat:      serviceChat{svc: svc},
		Output:    &instantOutput{},
		Log:       &memoryLog{},
	})
	c.Start()
	<-provider.entered
	require.Eventually(t, func() bool { return c.Snapshot().State == StateProcessing }, 2*time.Second, 5*time.Millisecond)

	c.Reset()
	require.Eventually(t, func() bool {
		gen, _ := hist.Generation(context.Background(), "kiosk")
		return c.Snapshot().State == StateIdle && gen == 1
	}, 2*time.Second, 5*time.Millisecond)

	close(provider.release)
	assert.Never(t, func() bool {
		msgs, _ := hist.List(context.Background(), "kiosk")
		return len(msgs) > 0
	}, 100*time.Millisecond, 5*time.Millisecond)
	assert.Empty(t, c.Snapshot().Turns)
}

func TestControllerObserversSeeTransitions(t *testing.T) {
	var mu sync.Mutex
	var seen []State
	c := NewController(Config{
		SessionID: "kiosk",
		Options:   fastOptions(),
		Input:     &scriptedInput{},
		Chat:      &scriptedChat{},
		Output:    &instantOutput{},
		Logger:    quietLogger(),
	})
	c.Observe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.State)
		mu.Unlock()
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	c.Start()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == StateListening
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, c.Snapshot().Listening)
}
