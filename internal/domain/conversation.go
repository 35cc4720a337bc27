package domain

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleSystem is the instruction turn seeding a conversation.
	RoleSystem Role = "system"
	// RoleUser is a turn authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant is a turn generated by the completion service.
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
