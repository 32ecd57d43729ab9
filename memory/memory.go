// Package memory holds the bounded conversation history shared by all agents
// in a thread, plus the pluggable stores that persist it across turns.
package memory

import (
	"context"

	"github.com/datatalk-ai/datatalk/message"
)

// DefaultWindow is the number of most-recent turns retained per thread.
const DefaultWindow = 15

// History is the ordered message transcript for one thread. A turn begins at
// each user message, so turn-level windowing is derivable from the message
// list alone.
type History struct {
	Messages []*message.Message `json:"messages"`
}

// NewHistory creates a history seeded with the given messages.
func NewHistory(msgs ...*message.Message) *History {
	h := &History{}
	h.Append(msgs...)
	return h
}

// Append adds messages to the end of the history.
func (h *History) Append(msgs ...*message.Message) {
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		h.Messages = append(h.Messages, msg)
	}
}

// Len returns the number of messages.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Messages)
}

// Turns counts the retained turns. Each user message starts a turn.
func (h *History) Turns() int {
	if h == nil {
		return 0
	}
	turns := 0
	for _, msg := range h.Messages {
		if msg.Role == message.RoleUser {
			turns++
		}
	}
	return turns
}

// TrimToTurns drops the oldest turns until at most n remain. Eviction is
// strict FIFO by turn count and happens silently. System messages that
// precede the first turn survive trimming.
func (h *History) TrimToTurns(n int) {
	if h == nil || n <= 0 {
		return
	}

	var userIdx []int
	for i, msg := range h.Messages {
		if msg.Role == message.RoleUser {
			userIdx = append(userIdx, i)
		}
	}
	if len(userIdx) <= n {
		return
	}

	// Preamble: system messages before the first turn.
	var preamble []*message.Message
	for _, msg := range h.Messages[:userIdx[0]] {
		if msg.Role == message.RoleSystem {
			preamble = append(preamble, msg)
		}
	}

	cut := userIdx[len(userIdx)-n]
	kept := make([]*message.Message, 0, len(preamble)+len(h.Messages)-cut)
	kept = append(kept, preamble...)
	kept = append(kept, h.Messages[cut:]...)
	h.Messages = kept
}

// TrimToSize caps the total message count, keeping system messages and the
// most recent remainder. This protects the transcript independently of the
// turn window.
func (h *History) TrimToSize(max int) {
	if h == nil || max <= 0 || len(h.Messages) <= max {
		return
	}

	var systemMsgs []*message.Message
	for _, msg := range h.Messages {
		if msg.Role == message.RoleSystem {
			systemMsgs = append(systemMsgs, msg)
		}
	}

	keep := max - len(systemMsgs)
	if keep < 0 {
		keep = 0
	}

	kept := make([]*message.Message, 0, max)
	kept = append(kept, systemMsgs...)
	for _, msg := range h.Messages[len(h.Messages)-keep:] {
		if msg.Role != message.RoleSystem {
			kept = append(kept, msg)
		}
	}
	h.Messages = kept
}

// Clone returns a deep copy of the history.
func (h *History) Clone() *History {
	if h == nil {
		return NewHistory()
	}
	return &History{Messages: message.CloneMessages(h.Messages)}
}

// Store persists thread histories keyed by thread identifier.
//
// Load on an unknown thread returns an empty history, not an error, so a new
// conversation starts cold without special-casing by the caller.
type Store interface {
	Load(ctx context.Context, threadID string) (*History, error)
	Save(ctx context.Context, threadID string, h *History) error
	Delete(ctx context.Context, threadID string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context, threadID string) (bool, error)
}
