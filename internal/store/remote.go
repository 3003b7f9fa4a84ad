package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/session"
)

// PrincipalSource yields the authenticated principal, or nil.
type PrincipalSource interface {
	Principal() *session.Principal
}

// RemoteStore is the per-owner variant. Without a principal it is empty and
// ignores mutations. Memory changes only after the backend confirms a write,
// and only with the rows the backend echoes back.
type RemoteStore struct {
	collection
	sessions PrincipalSource
	backend  pet.Repository
	logger   *zap.Logger
	now      func() time.Time
}

var _ Store = (*RemoteStore)(nil)

// NewRemoteStore creates an uninitialized store; call Fetch to load it.
func NewRemoteStore(sessions PrincipalSource, backend pet.Repository, logger *zap.Logger, opts ...Option) *RemoteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := buildOptions(opts)
	return &RemoteStore{
		collection: newCollection(),
		sessions:   sessions,
		backend:    backend,
		logger:     logger,
		now:        o.now,
	}
}

// Fetch loads the principal's pets, newest first. On failure the previous
// collection is kept and the status becomes StatusError.
func (s *RemoteStore) Fetch(ctx context.Context) error {
	s.setStatus(StatusLoading, nil)

	owner := s.sessions.Principal()
	if owner == nil {
		s.replace(nil)
		return nil
	}

	pets, err := s.backend.FindByOwner(ctx, owner.ID)
	if err != nil {
		s.logger.Error("error fetching pets", zap.String("user_id", owner.ID.String()), zap.Error(err))
		s.setStatus(StatusError, err)
		return err
	}
	s.replace(clonePets(pets))
	return nil
}

// Add inserts the pet for the current principal and prepends the stored row.
// Without a principal it returns (nil, nil).
func (s *RemoteStore) Add(ctx context.Context, in pet.Input) (*pet.Pet, error) {
	owner := s.sessions.Principal()
	if owner == nil {
		return nil, nil
	}

	row, err := s.backend.Insert(ctx, owner.ID, in)
	if err != nil {
		s.logger.Error("error adding pet", zap.String("user_id", owner.ID.String()), zap.Error(err))
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	stored := *row
	s.reconcile(func(cur []pet.Pet) []pet.Pet { return prepend(stored, cur) })
	return &stored, nil
}

// Update writes the editable fields and replaces the entry with the stored row.
func (s *RemoteStore) Update(ctx context.Context, id uuid.UUID, in pet.Input) (*pet.Pet, error) {
	owner := s.sessions.Principal()
	if owner == nil {
		return nil, nil
	}

	row, err := s.backend.Update(ctx, owner.ID, id, in, s.now())
	if err != nil {
		s.logger.Error("error updating pet", zap.String("pet_id", id.String()), zap.Error(err))
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	stored := *row
	s.reconcile(func(cur []pet.Pet) []pet.Pet {
		next := clonePets(cur)
		if i := indexOf(next, id); i >= 0 {
			next[i] = stored
		}
		return next
	})
	return &stored, nil
}

// Delete removes the row and, once confirmed, the entry.
func (s *RemoteStore) Delete(ctx context.Context, id uuid.UUID) error {
	owner := s.sessions.Principal()
	if owner == nil {
		return nil
	}

	if err := s.backend.Delete(ctx, owner.ID, id); err != nil {
		s.logger.Error("error deleting pet", zap.String("pet_id", id.String()), zap.Error(err))
		return err
	}
	s.reconcile(func(cur []pet.Pet) []pet.Pet { return without(cur, id) })
	return nil
}
