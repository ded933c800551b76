package chat

import (
	"fmt"
	"net/http"

	"dealer/kiosk/internal/config"
)

// NewProvider builds the provider named by chat.provider.
func NewProvider(cfg config.Config, httpc *http.Client) (Provider, error) {
	switch cfg.Chat.Provider {
	case "", "gemini":
		return NewGemini(cfg.Gemini.APIKey, cfg.Chat.Model, httpc), nil
	case "openai":
		return NewOpenAI(cfg.OpenAI.APIKey, cfg.Chat.Model, httpc), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Chat.Provider)
}
