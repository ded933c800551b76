// Package chat turns visitor utterances into receptionist replies using a
// hosted language model and a per-session history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dealer/kiosk/internal/history"
	"dealer/kiosk/internal/phrase"
)

var (
	ErrEmptyMessage    = errors.New("message is required")
	ErrEmptyReply      = errors.New("provider returned an empty reply")
	ErrUnknownProvider = errors.New("unknown chat provider")
)

// Provider completes a conversation given the system prompt and the ordered
// history, whose last entry is the visitor's newest message.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system string, msgs []history.Message) (string, error)
}

// Result is a reply plus the slot it asks the visitor for.
type Result struct {
	Reply    string      `json:"reply"`
	AskedFor phrase.Slot `json:"asked_for"`
}

type Service struct {
	provider Provider
	history  history.Store
	logger   *logrus.Logger
	now      func() time.Time
}

func NewService(p Provider, h history.Store, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{provider: p, history: h, logger: logger, now: time.Now}
}

// Reply sends text with the session's history and records both sides of the
// exchange. History is left untouched when the provider fails or when the
// session was reset while the provider was answering.
func (s *Service) Reply(ctx context.Context, sessionID, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyMessage
	}
	gen, err := s.history.Generation(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	past, err := s.history.List(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	now := s.now()
	user := history.Message{Role: history.RoleUser, Text: text, At: now.UTC()}
	msgs := append(past, user)

	start := time.Now()
	reply, err := s.provider.Complete(ctx, SystemPrompt(now), msgs)
	chatLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		chatRequestsTotal.WithLabelValues(s.provider.Name(), "error").Inc()
		return Result{}, fmt.Errorf("%s completion: %w", s.provider.Name(), err)
	}
	chatRequestsTotal.WithLabelValues(s.provider.Name(), "ok").Inc()
	reply = strings.TrimSpace(reply)

	assistant := history.Message{Role: history.RoleAssistant, Text: reply, At: s.now().UTC()}
	stored, err := s.history.AppendIf(ctx, sessionID, gen, user, assistant)
	switch {
	case err != nil:
		// the visitor still gets the reply; the next turn just lacks context
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to store chat history")
	case !stored:
		s.logger.WithField("session_id", sessionID).Info("history reset during reply, exchange not stored")
	}
	return Result{Reply: reply, AskedFor: phrase.AskedFor(reply)}, nil
}

// Reset clears the session's history.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if err := s.history.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	s.logger.WithField("session_id", sessionID).Info("chat history reset")
	return nil
}

// History returns the session's stored messages.
func (s *Service) History(ctx context.Context, sessionID string) ([]history.Message, error) {
	return s.history.List(ctx, sessionID)
}
