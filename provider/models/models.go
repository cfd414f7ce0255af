package models

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamChunk is one piece of a streamed answer. The last chunk on a stream
// has Done set; Err is non-nil when the stream broke off.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}
