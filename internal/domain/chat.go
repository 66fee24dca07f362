package domain

// ChatRole tags a conversation turn.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatTurn is one prior message in a chat conversation.
type ChatTurn struct {
	Role    ChatRole
	Content string
}
