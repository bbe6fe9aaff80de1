package ports

import (
	"context"

	"github.com/aretw0/triage/pkg/domain"
)

// DocumentStore persists workflow documents.
type DocumentStore interface {
	// Save writes doc under its (name, folder) key; the last write wins.
	// It stamps UpdatedAt (and CreatedAt on first save) and returns the stored copy.
	Save(ctx context.Context, doc *domain.Document) (*domain.Document, error)

	// Load returns (nil, nil) when no document exists for the key.
	Load(ctx context.Context, name, folder string) (*domain.Document, error)

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, name, folder string) error

	// List returns the metadata of every document in folder, sorted by name.
	List(ctx context.Context, folder string) ([]domain.DocumentMetadata, error)
}

// SessionStore persists execution sessions.
// This allows for durable execution, enabling "Stop & Resume" of guided procedures.
type SessionStore interface {
	// Save persists the session under its ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves a session.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// List returns all active session IDs.
	List(ctx context.Context) ([]string, error)
}
