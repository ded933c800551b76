// Package history keeps the per-session conversation transcript the chat
// service sends to the model on every turn.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownBackend = errors.New("unknown history backend")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxMessages caps a session's history. Older messages are dropped first.
const MaxMessages = 200

type Message struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Store holds each session's history. Every Reset bumps the session's
// generation; AppendIf writes only while the generation still matches, so an
// exchange started before a reset cannot land after it.
type Store interface {
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	AppendIf(ctx context.Context, sessionID string, gen uint64, msgs ...Message) (bool, error)
	Generation(ctx context.Context, sessionID string) (uint64, error)
	List(ctx context.Context, sessionID string) ([]Message, error)
	Reset(ctx context.Context, sessionID string) error
}
