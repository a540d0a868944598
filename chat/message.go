package chat

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Message is one utterance in a conversation. Messages are immutable
// values; an ordered slice of them forms a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// HumanMessage returns a human-role message.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AIMessage returns an assistant-role message.
func AIMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
