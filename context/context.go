// Package context tracks the working transcript of a single agent run:
// the system prompt, the restored thread history, and the assistant/tool
// exchanges of the current reasoning loop.
package context

import (
	"github.com/datatalk-ai/datatalk/message"
)

// DefaultMaxSize caps the transcript length kept in working context. The cap
// protects prompt size independently of any turn-level window applied by the
// session layer.
const DefaultMaxSize = 100

// Context is an ordered, size-capped message transcript. It is not
// concurrency-safe; each agent run owns its own instance.
type Context struct {
	messages []*message.Message
	maxSize  int
}

// New creates a context with the default size cap.
func New() *Context {
	return NewWithMaxSize(DefaultMaxSize)
}

// NewWithMaxSize creates a context keeping at most maxSize messages.
func NewWithMaxSize(maxSize int) *Context {
	return &Context{
		messages: make([]*message.Message, 0),
		maxSize:  maxSize,
	}
}

// AddMessage appends a message. When the transcript exceeds the cap,
// system messages are always retained and the oldest non-system messages
// are dropped first.
func (c *Context) AddMessage(msg *message.Message) {
	c.messages = append(c.messages, msg)
	if len(c.messages) <= c.maxSize {
		return
	}

	systemMsgs := make([]*message.Message, 0)
	for _, m := range c.messages {
		if m.Role == message.RoleSystem {
			systemMsgs = append(systemMsgs, m)
		}
	}

	keepCount := c.maxSize - len(systemMsgs)
	if keepCount < 0 {
		keepCount = 0
	}
	recentMsgs := c.messages[len(c.messages)-keepCount:]

	trimmed := make([]*message.Message, 0, c.maxSize)
	trimmed = append(trimmed, systemMsgs...)
	for _, m := range recentMsgs {
		if m.Role != message.RoleSystem {
			trimmed = append(trimmed, m)
		}
	}
	c.messages = trimmed
}

// AddMessages appends several messages, applying the same trimming rules.
func (c *Context) AddMessages(msgs []*message.Message) {
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		c.AddMessage(msg)
	}
}

// GetMessages returns the transcript in order.
func (c *Context) GetMessages() []*message.Message {
	return c.messages
}

// GetLastMessage returns the most recent message, or nil when empty.
func (c *Context) GetLastMessage() *message.Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// GetMessagesByRole filters the transcript by role.
func (c *Context) GetMessagesByRole(role message.Role) []*message.Message {
	result := make([]*message.Message, 0)
	for _, msg := range c.messages {
		if msg.Role == role {
			result = append(result, msg)
		}
	}
	return result
}

// Clear resets the transcript.
func (c *Context) Clear() {
	c.messages = make([]*message.Message, 0)
}

// Size returns the number of messages currently held.
func (c *Context) Size() int {
	return len(c.messages)
}
