// Package tts synthesizes the receptionist's replies into playable audio.
package tts

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"

    "dealer/kiosk/internal/config"
)

var (
    ErrEmptyText       = errors.New("text is required")
    ErrUnknownProvider = errors.New("unknown tts provider")
)

type Audio struct {
    ContentType string
    Data        []byte
}

type Synthesizer interface {
    Name() string
    Synthesize(ctx context.Context, text string) (Audio, error)
}

// New builds the synthesizer named by tts.provider, wrapped in a cache when
// the configured TTL is positive.
func New(cfg config.Config, httpc *http.Client) (Synthesizer, error) {
    var s Synthesizer
    switch cfg.TTS.Provider {
    case "", "google":
        s = NewGoogle(cfg.TTS.Lang, httpc)
    case "elevenlabs":
        s = NewElevenLabs(cfg.Eleven.APIKey, cfg.Eleven.VoiceID, httpc)
    default:
        return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.TTS.Provider)
    }
    if cfg.TTS.CacheTTL > 0 {
        s = NewCached(s, cfg.TTS.CacheTTL)
    }
    return s, nil
}

// fetch runs req and returns the body, failing on non-2xx.
func fetch(httpc *http.Client, req *http.Request, provider string) ([]byte, error) {
    start := time.Now()
    resp, err := httpc.Do(req)
    if err != nil {
        return nil, err
    }
    defer resp.Body.Close()
    ttsProviderLatencyMS.WithLabelValues(provider).Observe(float64(time.Since(start).Milliseconds()))
    if resp.StatusCode/100 != 2 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
        return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
    }
    return io.ReadAll(resp.Body)
}

// observe records the outcome of one synthesis.
func observe(provider string, start time.Time, err error) {
    status := "ok"
    if err != nil {
        status = "error"
    }
    ttsSynthesisTotal.WithLabelValues(provider, status).Inc()
    ttsTotalDurationMS.Observe(float64(time.Since(start).Milliseconds()))
}
