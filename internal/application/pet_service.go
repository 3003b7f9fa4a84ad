package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	petDomain "github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/events"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
)

// CreatePetRequest is the request body for creating a pet. UserID, when
// present, must name the authenticated principal.
type CreatePetRequest struct {
	petDomain.Input
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

// UpdatePetRequest is the request body for updating a pet. UpdatedAt is the
// client's mutation time; the server clock is used when it is absent.
type UpdatePetRequest struct {
	petDomain.Input
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// PetService implements the owner-scoped pet use cases.
type PetService struct {
	repo      petDomain.Repository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewPetService creates a new PetService.
func NewPetService(repo petDomain.Repository, publisher events.Publisher, logger *zap.Logger) *PetService {
	return &PetService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListPets returns the owner's pets, newest first.
func (s *PetService) ListPets(ctx context.Context, ownerID uuid.UUID) ([]petDomain.Pet, error) {
	pets, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pets: %w", err)
	}
	return pets, nil
}

// CreatePet stores a new pet for the owner.
func (s *PetService) CreatePet(ctx context.Context, ownerID uuid.UUID, req CreatePetRequest) (*petDomain.Pet, error) {
	if req.UserID != nil && *req.UserID != ownerID {
		return nil, domain.NewForbiddenError("user_id does not match the authenticated user")
	}
	req.Input = req.Input.Normalized()
	if err := req.Input.Validate(); err != nil {
		return nil, err
	}

	p, err := s.repo.Insert(ctx, ownerID, req.Input)
	if err != nil {
		s.logger.Error("failed to create pet", zap.String("owner_id", ownerID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to create pet: %w", err)
	}

	s.logger.Info("pet created",
		zap.String("pet_id", p.ID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	s.publishChanged(ctx, events.PetCreated, ownerID, p)
	return p, nil
}

// UpdatePet replaces the editable fields of one of the owner's pets.
func (s *PetService) UpdatePet(ctx context.Context, ownerID, petID uuid.UUID, req UpdatePetRequest) (*petDomain.Pet, error) {
	req.Input = req.Input.Normalized()
	if err := req.Input.Validate(); err != nil {
		return nil, err
	}
	at := s.now()
	if req.UpdatedAt != nil {
		at = req.UpdatedAt.UTC()
	}

	p, err := s.repo.Update(ctx, ownerID, petID, req.Input, at)
	if err != nil {
		s.logger.Error("failed to update pet", zap.String("pet_id", petID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to update pet: %w", err)
	}

	s.logger.Info("pet updated", zap.String("pet_id", petID.String()))
	s.publishChanged(ctx, events.PetUpdated, ownerID, p)
	return p, nil
}

// DeletePet removes one of the owner's pets. A missing pet is not an error.
func (s *PetService) DeletePet(ctx context.Context, ownerID, petID uuid.UUID) error {
	if err := s.repo.Delete(ctx, ownerID, petID); err != nil {
		s.logger.Error("failed to delete pet", zap.String("pet_id", petID.String()), zap.Error(err))
		return fmt.Errorf("failed to delete pet: %w", err)
	}

	s.logger.Info("pet deleted", zap.String("pet_id", petID.String()))
	s.publisher.Publish(ctx, events.TopicPetEvents, events.PetDeleted, petID.String(), events.PetDeletedEvent{
		PetID:      petID,
		OwnerID:    ownerID,
		OccurredAt: s.now(),
	})
	return nil
}

func (s *PetService) publishChanged(ctx context.Context, eventType string, ownerID uuid.UUID, p *petDomain.Pet) {
	s.publisher.Publish(ctx, events.TopicPetEvents, eventType, p.ID.String(), events.PetChangedEvent{
		PetID:      p.ID,
		OwnerID:    ownerID,
		Name:       p.Name,
		Species:    string(p.Species),
		OccurredAt: s.now(),
	})
}
