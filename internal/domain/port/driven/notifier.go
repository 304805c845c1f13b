package driven

import (
	"context"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// Notifier defines the driven port for the community chat channel.
type Notifier interface {
	// Announce posts the announcement and returns the created message ID.
	Announce(ctx context.Context, a model.Announcement) (string, error)
	// RecentMessages returns up to limit of the newest channel messages.
	RecentMessages(ctx context.Context, limit int) ([]model.ChatMessage, error)
}
