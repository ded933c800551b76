// Package kioskclient talks to the kiosk server from a remote kiosk: REST
// calls for chat, speech and interaction logging, and the websocket that
// lets the server drive the kiosk.
package kioskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dealer/kiosk/internal/conversation"
	"dealer/kiosk/internal/tts"
)

// Client calls the kiosk server REST API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpc: httpc}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status=%d body=%s", e.Path, e.Status, e.Body)
}

func (c *Client) post(ctx context.Context, path string, in any) (*http.Response, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	resp, err := c.post(ctx, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// ChatReply is the body returned by POST /chat.
type ChatReply struct {
	Reply    string `json:"reply"`
	AskedFor string `json:"asked_for"`
}

// Chat adapts the /chat endpoint to conversation.ChatService.
type Chat struct{ *Client }

var _ conversation.ChatService = Chat{}

func (c Chat) Reply(ctx context.Context, sessionID, text string) (string, error) {
	var out ChatReply
	err := c.postJSON(ctx, "/chat", map[string]any{"message": text, "session_id": sessionID}, &out)
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

func (c Chat) Reset(ctx context.Context, sessionID string) error {
	return c.postJSON(ctx, "/chat", map[string]any{"reset": true, "session_id": sessionID}, nil)
}

// Interactions adapts POST /interaction to conversation.InteractionLog.
type Interactions struct{ *Client }

var _ conversation.InteractionLog = Interactions{}

func (c Interactions) Record(ctx context.Context, in conversation.Interaction) error {
	return c.postJSON(ctx, "/interaction", in, nil)
}

// Synthesize fetches audio for text from POST /tts.
func (c *Client) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	resp, err := c.post(ctx, "/tts", map[string]string{"text": text})
	if err != nil {
		return tts.Audio{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("read audio: %w", err)
	}
	return tts.Audio{ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}

// CreateSession registers a kiosk session and returns its id.
func (c *Client) CreateSession(ctx context.Context, label string) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.postJSON(ctx, "/sessions", map[string]string{"label": label}, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// KioskToken mints a websocket token for sessionID.
func (c *Client) KioskToken(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.postJSON(ctx, "/sessions/"+sessionID+"/kiosk-token", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}
