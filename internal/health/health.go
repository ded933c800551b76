package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"dealer/kiosk/internal/config"
)

type CheckResult struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Optional bool          `json:"optional,omitempty"`
	Latency  time.Duration `json:"latency_ms"`
	Error    string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Pinger is satisfied by the interaction service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker runs the readiness checks for the kiosk server.
type Checker struct {
	Cfg          config.Config
	Interactions Pinger
	HTTP         *http.Client
	// ElevenLabsBaseURL overrides the ElevenLabs API root.
	ElevenLabsBaseURL string
}

// CheckAll runs all health checks and returns combined status. Optional
// checks are reported but never fail the whole status.
func (c *Checker) CheckAll(ctx context.Context) HealthStatus {
	checks := []CheckResult{
		c.checkChat(),
		c.checkTTS(ctx),
		c.checkInteractions(ctx),
		c.checkDoor(),
	}

	allOK := true
	for _, r := range checks {
		if !r.OK && !r.Optional {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func (c *Checker) checkChat() CheckResult {
	result := CheckResult{Name: "chat_" + c.Cfg.Chat.Provider}
	switch c.Cfg.Chat.Provider {
	case "gemini":
		if c.Cfg.Gemini.APIKey == "" {
			result.Error = "GEMINI_API_KEY not set"
			return result
		}
	case "openai":
		if c.Cfg.OpenAI.APIKey == "" {
			result.Error = "OPENAI_API_KEY not set"
			return result
		}
	default:
		result.Error = fmt.Sprintf("unknown chat provider %q", c.Cfg.Chat.Provider)
		return result
	}
	result.OK = true
	return result
}

func (c *Checker) checkTTS(ctx context.Context) CheckResult {
	switch c.Cfg.TTS.Provider {
	case "google":
		return CheckResult{Name: "tts_google", OK: true}
	case "elevenlabs":
		return c.checkElevenLabs(ctx)
	}
	return CheckResult{Name: "tts", Error: fmt.Sprintf("unknown tts provider %q", c.Cfg.TTS.Provider)}
}

// checkElevenLabs looks the configured voice up, which works with keys that
// only carry TTS permissions.
func (c *Checker) checkElevenLabs(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "tts_elevenlabs"}

	if c.Cfg.Eleven.APIKey == "" || c.Cfg.Eleven.VoiceID == "" {
		result.Error = "ELEVENLABS_API_KEY or ELEVENLABS_VOICE_ID not set"
		return result
	}

	base := c.ElevenLabsBaseURL
	if base == "" {
		base = "https://api.elevenlabs.io"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/voices/%s", base, c.Cfg.Eleven.VoiceID), nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		return result
	}
	req.Header.Set("xi-api-key", c.Cfg.Eleven.APIKey)

	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Latency = time.Since(start)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		result.Error = "invalid API key (401)"
	case resp.StatusCode == http.StatusNotFound:
		result.Error = fmt.Sprintf("voice ID %q not found", c.Cfg.Eleven.VoiceID)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
	default:
		result.OK = true
	}
	return result
}

func (c *Checker) checkInteractions(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "interactions_" + c.Cfg.Interaction.Backend}
	if c.Interactions == nil {
		result.Error = "interaction store not wired"
		return result
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Interactions.Ping(ctx); err != nil {
		result.Error = err.Error()
	} else {
		result.OK = true
	}
	result.Latency = time.Since(start)
	return result
}

func (c *Checker) checkDoor() CheckResult {
	result := CheckResult{Name: "door", Optional: true}
	if c.Cfg.Door.URL == "" {
		result.Error = "OPEN_URL not set"
		return result
	}
	result.OK = true
	return result
}
