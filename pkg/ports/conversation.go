package ports

import (
	"context"

	"github.com/aretw0/mdsa/pkg/domain"
)

// ConversationStore keeps the chat history of a session between requests.
type ConversationStore interface {
	// Load returns the turns of a session, oldest first.
	// It returns domain.ErrSessionNotFound for an unknown session.
	Load(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// Save replaces the turns of a session.
	Save(ctx context.Context, sessionID string, turns []domain.Turn) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error
}
