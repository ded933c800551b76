package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"dealer/kiosk/internal/types"
)

var ErrSessionExists = errors.New("session already exists")

// MaxEvents caps the event log of a session; the oldest entries are dropped
// and replaced by a single events_truncated marker.
const MaxEvents = 200

type Store struct {
    mu       sync.RWMutex
    sessions map[string]*types.Session
    events   map[string][]types.Event
    now      func() time.Time
}

func New() *Store {
    return &Store{
        sessions: make(map[string]*types.Session),
        events:   make(map[string][]types.Event),
        now:      time.Now,
    }
}

func (s *Store) CreateSession(sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrSessionExists
	}
	if sess.Status == "" {
		sess.Status = types.StatusCreated
	}
	s.sessions[sess.ID] = sess
	s.events[sess.ID] = []types.Event{}
	return nil
}

// GetSession returns a copy of the session, or nil.
func (s *Store) GetSession(id string) *types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	cp := *sess
	return &cp
}

func (s *Store) AppendEvent(sessionID, typ string, payload map[string]any) types.Event {
    evt := types.Event{Type: typ, Ts: s.now().UTC(), Payload: payload}
    s.mu.Lock()
    defer s.mu.Unlock()
    s.events[sessionID] = append(s.events[sessionID], evt)
    if l := len(s.events[sessionID]); l > MaxEvents {
        keep := MaxEvents - 1
        dropped := l - keep
        s.events[sessionID] = append([]types.Event(nil), s.events[sessionID][l-keep:]...)
        warn := types.Event{Type: "events_truncated", Ts: s.now().UTC(), Payload: map[string]any{"session_id": sessionID, "dropped": dropped, "kept": keep}}
        s.events[sessionID] = append(s.events[sessionID], warn)
    }
    return evt
}

func (s *Store) ListEvents(sessionID string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

func (s *Store) SetStatus(sessionID, status string) {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Status = status
	}
	s.mu.Unlock()
}

// SetKioskConnected records whether a browser kiosk is attached.
func (s *Store) SetKioskConnected(sessionID string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	sess.KioskConnected = connected
	if connected {
		at := s.now().UTC()
		sess.LastConnectedAt = &at
	}
}

// CountConversation bumps the number of completed conversations.
func (s *Store) CountConversation(sessionID string) {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Conversations++
	}
	s.mu.Unlock()
}

func (s *Store) ListSessionIDs() []string {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]string, 0, len(s.sessions))
    for id := range s.sessions {
        out = append(out, id)
    }
    sort.Strings(out)
    return out
}
