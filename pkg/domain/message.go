package domain

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single role-tagged entry in the model-visible conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
