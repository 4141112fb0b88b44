// Package thread manages per-admin conversation threads.
//
// Each administrator owns at most one active thread, created lazily on first
// chat. Messages store their model parts as JSONB and carry monotonically
// increasing sequence numbers assigned inside a row-locked transaction, so
// concurrent appends to the same thread never interleave sequence numbers.
package thread

import (
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// Thread is an admin's conversation thread.
type Thread struct {
	ID         uuid.UUID `json:"id"`
	OwnerEmail string    `json:"owner_email"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Message is one persisted conversation message. Content holds the model
// parts (text, tool requests, tool responses) in wire form.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ThreadID       uuid.UUID  `json:"thread_id"`
	Role           string     `json:"role"`
	Content        []*ai.Part `json:"content"`
	SequenceNumber int64      `json:"sequence_number"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToModelMessages converts persisted messages into the model message form
// used as generation context.
func ToModelMessages(messages []*Message) []*ai.Message {
	out := make([]*ai.Message, len(messages))
	for i, msg := range messages {
		out[i] = &ai.Message{
			Role:    ai.Role(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}
