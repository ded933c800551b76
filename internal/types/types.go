package types

import "time"

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Session statuses.
const (
	StatusCreated = "created"
	StatusActive  = "active"
	StatusClosed  = "closed"
)

// Session is one kiosk (one visitor screen) known to the server.
type Session struct {
	ID        string    `json:"session_id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`

	KioskConnected  bool       `json:"kiosk_connected"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
	Conversations   int        `json:"conversations"`
}
