package domain

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// Conversation is the append-only history of one chat session. The system
// message is never part of it.
type Conversation struct {
	SessionID string
	CreatedAt time.Time
	UpdatedAt time.Time
	messages  []Message
}

func NewConversation(sessionID string, now time.Time) *Conversation {
	return &Conversation{SessionID: sessionID, CreatedAt: now, UpdatedAt: now}
}

func RestoreConversation(sessionID string, createdAt, updatedAt time.Time, messages []Message) *Conversation {
	restored := make([]Message, 0, len(messages))
	for _, message := range messages {
		restored = append(restored, cloneMessage(message))
	}

	return &Conversation{
		SessionID: sessionID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		messages:  restored,
	}
}

func (c *Conversation) Append(message Message, now time.Time) {
	c.messages = append(c.messages, cloneMessage(message))
	c.UpdatedAt = now
}

func (c *Conversation) Messages() []Message {
	out := make([]Message, 0, len(c.messages))
	for _, message := range c.messages {
		out = append(out, cloneMessage(message))
	}
	return out
}

func (c *Conversation) Len() int {
	return len(c.messages)
}

// LastAssistant returns the most recent assistant message, if any.
func (c *Conversation) LastAssistant() (Message, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleAssistant {
			return cloneMessage(c.messages[i]), true
		}
	}
	return Message{}, false
}

func cloneMessage(message Message) Message {
	if len(message.ToolCalls) > 0 {
		calls := make([]ToolCall, len(message.ToolCalls))
		copy(calls, message.ToolCalls)
		message.ToolCalls = calls
	}
	return message
}
