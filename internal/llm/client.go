// Package llm provides the chat-completion client used for domain
// suggestions and free-form chat.
package llm

import (
	"context"

	"github.com/ashureev/namewise/internal/domain"
)

// Client sends an ordered list of role-tagged messages to a completion
// service and returns the generated reply text.
type Client interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}
