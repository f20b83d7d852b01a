package domain

import "context"

// Channel is a client-facing transport (CLI, Telegram, Web).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
	Send(ctx context.Context, chatID string, content string) error
}
