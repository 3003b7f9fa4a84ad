package pet

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the row-oriented backing store for pets. Every call is
// scoped to an owner; rows belonging to another owner are invisible.
type Repository interface {
	// FindByOwner returns the owner's pets, newest first.
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]Pet, error)
	// Insert stores a new row and returns it as persisted.
	Insert(ctx context.Context, ownerID uuid.UUID, in Input) (*Pet, error)
	// Update replaces the editable fields of the row and returns it as
	// persisted. A missing row is a not-found error.
	Update(ctx context.Context, ownerID, id uuid.UUID, in Input, updatedAt time.Time) (*Pet, error)
	// Delete removes the row. Deleting a missing row is not an error.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}
