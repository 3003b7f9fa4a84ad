package client

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/httpclient"
)

// TokenSource yields the bearer token for API calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type insertBody struct {
	pet.Input
	UserID uuid.UUID `json:"user_id"`
}

type updateBody struct {
	pet.Input
	UpdatedAt time.Time `json:"updated_at"`
}

// PetBackend implements pet.Repository over /api/v1/pets. The server scopes
// every call to the token's owner.
type PetBackend struct {
	http   *httpclient.Client
	tokens TokenSource
}

var _ pet.Repository = (*PetBackend)(nil)

func NewPetBackend(c *httpclient.Client, tokens TokenSource) *PetBackend {
	return &PetBackend{http: c, tokens: tokens}
}

func (b *PetBackend) FindByOwner(ctx context.Context, _ uuid.UUID) ([]pet.Pet, error) {
	var out envelope[[]pet.Pet]
	if err := b.call(ctx, http.MethodGet, "/api/v1/pets", nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []pet.Pet{}, nil
	}
	return out.Data, nil
}

func (b *PetBackend) Insert(ctx context.Context, ownerID uuid.UUID, in pet.Input) (*pet.Pet, error) {
	var out envelope[pet.Pet]
	if err := b.call(ctx, http.MethodPost, "/api/v1/pets", insertBody{Input: in, UserID: ownerID}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (b *PetBackend) Update(ctx context.Context, _, id uuid.UUID, in pet.Input, updatedAt time.Time) (*pet.Pet, error) {
	var out envelope[pet.Pet]
	if err := b.call(ctx, http.MethodPut, "/api/v1/pets/"+id.String(), updateBody{Input: in, UpdatedAt: updatedAt}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (b *PetBackend) Delete(ctx context.Context, _, id uuid.UUID) error {
	return b.call(ctx, http.MethodDelete, "/api/v1/pets/"+id.String(), nil, nil)
}

func (b *PetBackend) call(ctx context.Context, method, path string, in, out any) error {
	token, err := b.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	err = b.http.DoJSON(ctx, httpclient.Request{
		Method: method,
		Path:   path,
		Token:  token,
		In:     in,
		Out:    out,
	})
	if err != nil {
		return domainError(err)
	}
	return nil
}
