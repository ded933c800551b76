package tts

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"
)

const elevenBaseURL = "https://api.elevenlabs.io"

type ElevenLabs struct {
    apiKey  string
    voiceID string
    baseURL string
    httpc   *http.Client
}

func NewElevenLabs(apiKey, voiceID string, httpc *http.Client) *ElevenLabs {
    if httpc == nil {
        httpc = http.DefaultClient
    }
    return &ElevenLabs{apiKey: apiKey, voiceID: voiceID, baseURL: elevenBaseURL, httpc: httpc}
}

func (e *ElevenLabs) WithBaseURL(u string) *ElevenLabs {
    e.baseURL = strings.TrimRight(u, "/")
    return e
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (a Audio, err error) {
    start := time.Now()
    defer func() { observe("elevenlabs", start, err) }()

    if strings.TrimSpace(text) == "" {
        return Audio{}, ErrEmptyText
    }
    if e.apiKey == "" || e.voiceID == "" {
        return Audio{}, fmt.Errorf("missing ELEVENLABS_API_KEY or ELEVENLABS_VOICE_ID")
    }

    url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, e.voiceID)
    reqBytes, _ := json.Marshal(map[string]any{
        "text":     text,
        "model_id": "eleven_multilingual_v2",
    })
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
    if err != nil {
        return Audio{}, err
    }
    req.Header.Set("xi-api-key", e.apiKey)
    req.Header.Set("accept", "audio/mpeg")
    req.Header.Set("content-type", "application/json")

    b, err := fetch(e.httpc, req, "elevenlabs")
    if err != nil {
        return Audio{}, err
    }
    return Audio{ContentType: "audio/mpeg", Data: b}, nil
}
