package kioskclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"dealer/kiosk/internal/conversation"
	"dealer/kiosk/internal/kioskws"
)

// Device is the local microphone and speaker of a kiosk.
type Device interface {
	conversation.SpeechInput
	Play(ctx context.Context, text string, onStart func()) error
}

// Remote is a kiosk attached to the server over the websocket. The server
// sends commands and the kiosk answers with events.
type Remote struct {
	conn      *ws.Conn
	sessionID string

	mu  sync.Mutex
	seq int64
}

// Dial opens the kiosk websocket of sessionID.
func Dial(ctx context.Context, baseURL, sessionID, token string) (*Remote, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws/kiosk")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	c, _, err := ws.Dial(ctx, u.String(), &ws.DialOptions{HTTPHeader: h})
	if err != nil {
		return nil, fmt.Errorf("dial kiosk ws: %w", err)
	}
	return &Remote{conn: c, sessionID: sessionID}, nil
}

// Send writes one message to the server.
func (r *Remote) Send(ctx context.Context, msg kioskws.Message) error {
	r.mu.Lock()
	r.seq++
	msg.Seq = r.seq
	r.mu.Unlock()
	msg.SessionID = r.sessionID
	msg.TsMs = time.Now().UnixMilli()
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.conn.Write(ctx, ws.MessageText, b)
}

// Serve executes server commands on dev until ctx is done or the connection
// closes. onEvent, if set, receives the server's "event" messages.
func (r *Remote) Serve(ctx context.Context, dev Device, onEvent func(kioskws.Message)) error {
	if err := r.Send(ctx, kioskws.Message{Type: kioskws.MsgHello}); err != nil {
		return err
	}
	captures := map[string]context.CancelFunc{}
	var mu sync.Mutex
	for {
		_, data, err := r.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || ws.CloseStatus(err) != -1 {
				return nil
			}
			return err
		}
		var msg kioskws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case kioskws.CmdStartListening:
			cctx, cancel := context.WithCancel(ctx)
			mu.Lock()
			captures[msg.CommandID] = cancel
			mu.Unlock()
			go func(id string) {
				defer func() {
					mu.Lock()
					delete(captures, id)
					mu.Unlock()
					cancel()
				}()
				text, err := dev.Listen(cctx)
				if cctx.Err() != nil {
					return
				}
				out := kioskws.Message{Type: kioskws.EvtTranscript, CommandID: id, Text: text}
				if err != nil || text == "" {
					out = kioskws.Message{Type: kioskws.EvtCaptureEnded, CommandID: id}
					if err != nil && !errors.Is(err, conversation.ErrNoTranscript) {
						out.Error = err.Error()
					}
				}
				_ = r.Send(ctx, out)
			}(msg.CommandID)
		case kioskws.CmdAbortListening:
			mu.Lock()
			if cancel, ok := captures[msg.CommandID]; ok {
				cancel()
			}
			mu.Unlock()
		case kioskws.CmdSpeak:
			go func(id, text string) {
				onStart := func() { _ = r.Send(ctx, kioskws.Message{Type: kioskws.EvtPlaybackStarted, CommandID: id}) }
				if err := dev.Play(ctx, text, onStart); err != nil {
					_ = r.Send(ctx, kioskws.Message{Type: kioskws.EvtPlaybackFailed, CommandID: id, Error: err.Error()})
					return
				}
				_ = r.Send(ctx, kioskws.Message{Type: kioskws.EvtPlaybackEnded, CommandID: id})
			}(msg.CommandID, msg.Text)
		case kioskws.MsgEvent:
			if onEvent != nil {
				onEvent(msg)
			}
		}
	}
}

func (r *Remote) Close() error {
	return r.conn.Close(ws.StatusNormalClosure, "bye")
}
