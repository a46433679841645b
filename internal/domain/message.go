// Package domain contains core domain types for the Choosie chat service.
package domain

// Role identifies the author of a chat message. The set is closed:
// only RoleUser and RoleAssistant exist.
type Role string

const (
	// RoleUser marks a message written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single chat history entry. Messages are immutable once
// appended; history is only ever bulk-trimmed from the front.
type Message struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"` // media type note, not the payload
}
