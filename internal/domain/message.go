package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single entry in a challenge's chat transcript.
// Identity is the ID; ordering is insertion order within the transcript.
type ChatMessage struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NewChatMessage creates a message with a fresh unique ID.
func NewChatMessage(role Role, text string) ChatMessage {
	return ChatMessage{
		ID:   uuid.NewString(),
		Role: role,
		Text: text,
	}
}

// UnmarshalJSON decodes a stored message, synthesizing an ID when older
// persisted shapes omit one.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias ChatMessage
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	*m = ChatMessage(a)
	return nil
}
