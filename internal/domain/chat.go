package domain

// Role identifies who authored a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is the provider-agnostic chat message shape shared by the
// conversation store, the completion client and the activity log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
