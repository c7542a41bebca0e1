// Package transport holds the messaging-platform-neutral types the
// notifier speaks.
package transport

import "context"

// ChatTarget addresses a chat and, optionally, a forum topic inside it.
// ChatID is kept as text so both numeric ids and @channel names work.
type ChatTarget struct {
	ChatID   string
	ThreadID int
}

type MessageRef struct {
	ChatID    string
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	DisablePreview bool
}

// Sender delivers a text message to a chat.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
