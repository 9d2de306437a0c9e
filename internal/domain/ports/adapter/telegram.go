// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// Keyboard selects the reply keyboard shown under a message.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardIdle          // /help, /new_chat
	KeyboardChat          // /help, /end_chat, /end_story
)

type Reply struct {
	ChatID  int64
	ReplyTo int // message id, 0 for a plain message
	Text    string
	// Keyboard is attached to the reply; KeyboardNone leaves the current one.
	Keyboard Keyboard
	HTML     bool
}

// ChatTransport is the outbound side of the chat platform.
type ChatTransport interface {
	Reply(ctx context.Context, r Reply) error
	SendDocument(ctx context.Context, chatID int64, name string, data []byte) error
}
