package chat

import "context"

// Client delivers one message to the team channel. This decouples the
// delivery dispatcher from the concrete transport (Slack webhook or
// Telegram chat).
type Client interface {
	Send(ctx context.Context, text string) error
}
