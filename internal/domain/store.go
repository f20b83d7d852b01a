package domain

import "context"

// MemoryStore persists conversation memories keyed by conversation key.
// LoadMemory returns (nil, nil) when nothing is stored under the key.
type MemoryStore interface {
	LoadMemory(ctx context.Context, key string) (*ConversationMemory, error)
	SaveMemory(ctx context.Context, key string, mem ConversationMemory) error
	DeleteMemory(ctx context.Context, key string) error
	ListConversations(ctx context.Context, limit int) ([]ConversationSummary, error)
	Close() error
}

// UsageRecorder is implemented by stores that keep LLM usage per conversation.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, key, provider string, usage Usage, latencyMs int64) error
}
