package conversation

import (
	"context"
	"errors"
)

// ErrNoTranscript is returned by SpeechInput when a capture ends without
// producing text.
var ErrNoTranscript = errors.New("capture ended without transcript")

// SpeechInput runs one single-utterance capture. Cancelling ctx aborts it.
type SpeechInput interface {
	Listen(ctx context.Context) (string, error)
}

// ChatService produces assistant replies. History is held per session.
type ChatService interface {
	Reply(ctx context.Context, sessionID, text string) (string, error)
	Reset(ctx context.Context, sessionID string) error
}

// SpeechOutput vocalizes text. Speak blocks until playback ends and calls
// onStart once, before returning, when playback begins.
type SpeechOutput interface {
	Speak(ctx context.Context, text string, onStart func()) error
}

// InteractionLog persists one record per completed conversation.
type InteractionLog interface {
	Record(ctx context.Context, in Interaction) error
}

// SpeechInputFunc adapts a function to SpeechInput.
type SpeechInputFunc func(ctx context.Context) (string, error)

func (f SpeechInputFunc) Listen(ctx context.Context) (string, error) { return f(ctx) }

// InteractionLogFunc adapts a function to InteractionLog.
type InteractionLogFunc func(ctx context.Context, in Interaction) error

func (f InteractionLogFunc) Record(ctx context.Context, in Interaction) error { return f(ctx, in) }
