package conversation

import (
	"time"

	"dealer/kiosk/internal/phrase"
)

type Role string

const (
	RoleVisitor   Role = "visitor"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance by the visitor or the assistant.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SessionContext is the mutable per-conversation state. Empty strings mean
// the value has not been captured yet.
type SessionContext struct {
	VisitorName        string `json:"visitor_name,omitempty"`
	ProductInterest    string `json:"product_interest,omitempty"`
	LastAssistantText  string `json:"last_assistant_text,omitempty"`
	AutoRespond        bool   `json:"auto_respond"`
	ConversationActive bool   `json:"conversation_active"`
}

// absorb stores transcript as the name or the product interest when the
// previous assistant turn asked for it.
func (c *SessionContext) absorb(transcript string) {
	if phrase.AsksName(c.LastAssistantText) {
		c.VisitorName = transcript
	}
	if phrase.AsksProduct(c.LastAssistantText) {
		c.ProductInterest = transcript
	}
}

// Interaction is the record emitted when a conversation reaches its goal.
type Interaction struct {
	SessionID string    `json:"session_id,omitempty"`
	Name      string    `json:"name"`
	Product   string    `json:"product"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the observable state of a conversation.
type Snapshot struct {
	State      State          `json:"state"`
	Listening  bool           `json:"listening"`
	Processing bool           `json:"processing"`
	Speaking   bool           `json:"speaking"`
	Context    SessionContext `json:"context"`
	Turns      []Turn         `json:"turns"`
	Epoch      uint64         `json:"epoch"`
}
