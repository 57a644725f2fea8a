package email

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemorySender keeps sent messages in memory. Err, when set, is returned
// from every Send and nothing is recorded.
type MemorySender struct {
	mu     sync.Mutex
	emails []Message
	Err    error
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, msg Message) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return Receipt{}, s.Err
	}

	s.emails = append(s.emails, msg)
	return Receipt{MessageID: uuid.NewString(), Accepted: []string{msg.To}}, nil
}

// Emails returns a copy of the recorded messages.
func (s *MemorySender) Emails() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.emails))
	copy(out, s.emails)
	return out
}

// Last returns the most recent message.
func (s *MemorySender) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.emails) == 0 {
		return Message{}, false
	}
	return s.emails[len(s.emails)-1], true
}
