package agent

import "github.com/DachengChen/shelfcare/ai"

// Turn is one message of a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the history of one session. It only grows: a run adds
// exactly one user turn and one assistant turn, and nothing is ever
// trimmed. A Conversation is not safe for concurrent runs.
type Conversation struct {
	Turns []Turn `json:"turns"`
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds a turn.
func (c *Conversation) Append(role, content string) {
	c.Turns = append(c.Turns, Turn{Role: role, Content: content})
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.Turns) }

// Messages converts the history to provider messages.
func (c *Conversation) Messages() []ai.Message {
	out := make([]ai.Message, len(c.Turns))
	for i, t := range c.Turns {
		out[i] = ai.Message{Role: t.Role, Content: t.Content}
	}
	return out
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	return &Conversation{Turns: append([]Turn(nil), c.Turns...)}
}
