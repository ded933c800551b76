// Package events fans session events out to live subscribers such as
// websocket clients and the server log.
package events

import (
    "sync"
    "time"

    "github.com/google/uuid"
)

type Event struct {
    ID        string         `json:"id"`
    SessionID string         `json:"session_id"`
    Type      string         `json:"type"`
    Timestamp time.Time      `json:"timestamp"`
    Payload   map[string]any `json:"payload,omitempty"`
}

// Bus delivers each published event to every subscriber of its session.
// Slow subscribers lose events instead of blocking the publisher.
type Bus struct {
    mu     sync.RWMutex
    subs   map[string]map[uint64]chan Event
    nextID uint64
    buffer int
}

func NewBus(buffer int) *Bus {
    if buffer <= 0 {
        buffer = 16
    }
    return &Bus{subs: make(map[string]map[uint64]chan Event), buffer: buffer}
}

func (b *Bus) Publish(sessionID, typ string, payload map[string]any) Event {
    evt := Event{
        ID:        uuid.NewString(),
        SessionID: sessionID,
        Type:      typ,
        Timestamp: time.Now().UTC(),
        Payload:   payload,
    }
    b.mu.RLock()
    defer b.mu.RUnlock()
    for _, ch := range b.subs[sessionID] {
        select {
        case ch <- evt:
        default:
            droppedEvents.Inc()
        }
    }
    return evt
}

// Subscribe returns a channel of events for sessionID and a cancel func
// that closes it.
func (b *Bus) Subscribe(sessionID string) (<-chan Event, func()) {
    ch := make(chan Event, b.buffer)
    b.mu.Lock()
    id := b.nextID
    b.nextID++
    if b.subs[sessionID] == nil {
        b.subs[sessionID] = make(map[uint64]chan Event)
    }
    b.subs[sessionID][id] = ch
    b.mu.Unlock()

    var once sync.Once
    return ch, func() {
        once.Do(func() {
            b.mu.Lock()
            delete(b.subs[sessionID], id)
            if len(b.subs[sessionID]) == 0 {
                delete(b.subs, sessionID)
            }
            b.mu.Unlock()
            close(ch)
        })
    }
}

func (b *Bus) Subscribers(sessionID string) int {
    b.mu.RLock()
    defer b.mu.RUnlock()
    return len(b.subs[sessionID])
}
