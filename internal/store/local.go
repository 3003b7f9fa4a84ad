package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/store/blob"
)

// StorageKey is the blob key of the local collection.
const StorageKey = "pet-storage"

// envelope is the persisted layout: {"state":{"pets":[...]},"version":0}.
type envelope struct {
	State struct {
		Pets []pet.Pet `json:"pets"`
	} `json:"state"`
	Version int `json:"version"`
}

// EncodeCollection serialises pets in the persisted layout.
func EncodeCollection(pets []pet.Pet) ([]byte, error) {
	var env envelope
	env.State.Pets = pets
	if env.State.Pets == nil {
		env.State.Pets = []pet.Pet{}
	}
	return json.Marshal(env)
}

// DecodeCollection parses the persisted layout.
func DecodeCollection(b []byte) ([]pet.Pet, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", StorageKey, err)
	}
	return env.State.Pets, nil
}

// LocalStore is the session-independent variant. The blob always holds the
// same collection as memory: every mutation is written before it is applied.
type LocalStore struct {
	collection
	blobs  blob.Store
	logger *zap.Logger
	now    func() time.Time

	// writeMu serialises persist-then-swap.
	writeMu sync.Mutex
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates the store and hydrates it from blobs.
func NewLocalStore(ctx context.Context, blobs blob.Store, logger *zap.Logger, opts ...Option) (*LocalStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := buildOptions(opts)
	s := &LocalStore{
		collection: newCollection(),
		blobs:      blobs,
		logger:     logger,
		now:        o.now,
	}
	if err := s.Fetch(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Fetch reloads the collection from durable storage. A missing blob is an
// empty collection.
func (s *LocalStore) Fetch(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.setStatus(StatusLoading, nil)
	raw, err := s.blobs.Load(ctx, StorageKey)
	if errors.Is(err, blob.ErrNotFound) {
		s.replace(nil)
		return nil
	}
	if err == nil {
		var pets []pet.Pet
		if pets, err = DecodeCollection(raw); err == nil {
			s.replace(pets)
			return nil
		}
	}
	s.logger.Error("failed to load local pets", zap.Error(err))
	s.setStatus(StatusError, err)
	return err
}

// Add assigns an identifier and creation time and prepends the pet.
func (s *LocalStore) Add(ctx context.Context, in pet.Input) (*pet.Pet, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p := pet.Pet{ID: uuid.New(), CreatedAt: s.now()}.Apply(in)
	if err := s.commit(ctx, prepend(p, s.current())); err != nil {
		s.logger.Error("failed to add pet", zap.String("name", in.Name), zap.Error(err))
		return nil, err
	}
	s.logger.Debug("pet added", zap.String("pet_id", p.ID.String()))
	return &p, nil
}

// Update replaces the editable fields of the pet with id.
func (s *LocalStore) Update(ctx context.Context, id uuid.UUID, in pet.Input) (*pet.Pet, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	i := indexOf(cur, id)
	if i < 0 {
		return nil, domain.NewNotFoundError("Pet", id.String())
	}
	next := clonePets(cur)
	next[i] = cur[i].Apply(in)
	if err := s.commit(ctx, next); err != nil {
		s.logger.Error("failed to update pet", zap.String("pet_id", id.String()), zap.Error(err))
		return nil, err
	}
	updated := next[i]
	return &updated, nil
}

// Delete removes the pet with id. Deleting an unknown id does nothing.
func (s *LocalStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	if indexOf(cur, id) < 0 {
		return nil
	}
	if err := s.commit(ctx, without(cur, id)); err != nil {
		s.logger.Error("failed to delete pet", zap.String("pet_id", id.String()), zap.Error(err))
		return err
	}
	return nil
}

// commit writes next to the blob and only then swaps it into memory.
func (s *LocalStore) commit(ctx context.Context, next []pet.Pet) error {
	raw, err := EncodeCollection(next)
	if err != nil {
		return err
	}
	if err := s.blobs.Save(ctx, StorageKey, raw); err != nil {
		return fmt.Errorf("persist pets: %w", err)
	}
	s.replace(next)
	return nil
}
