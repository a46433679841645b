package domain

import (
	"time"
)

// Session holds one conversation: an ordered message history and at most
// one pending offer. Sessions carry no locks of their own; the session
// store serializes all access to a given session.
type Session struct {
	ID        string
	Messages  []Message
	Pending   *PendingOffer
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Append adds a message to the end of the history.
func (s *Session) Append(m Message) {
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = time.Now()
}

// Trim retains only the most recent max messages, discarding the oldest.
// Order among survivors is preserved.
func (s *Session) Trim(max int) {
	if max < 0 || len(s.Messages) <= max {
		return
	}
	s.Messages = append([]Message(nil), s.Messages[len(s.Messages)-max:]...)
}

// History returns a copy of the message sequence.
func (s *Session) History() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// SetPending stores the offer awaiting confirmation, replacing any
// previous one.
func (s *Session) SetPending(p *PendingOffer) {
	s.Pending = p
	s.UpdatedAt = time.Now()
}

// TakePending removes and returns the pending offer, or nil if none.
func (s *Session) TakePending() *PendingOffer {
	p := s.Pending
	s.Pending = nil
	if p != nil {
		s.UpdatedAt = time.Now()
	}
	return p
}
