package models

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Failed marks an assistant turn that carries an error message instead of an answer.
	Failed bool `json:"failed,omitempty"`
}
