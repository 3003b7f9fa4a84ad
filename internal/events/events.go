// Package events defines the pet-manager topics and payloads and connects
// them to Kafka.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Source is the CloudEvent source of everything this service publishes.
const Source = "service-pet-manager"

// Topics.
const (
	TopicPetEvents  = "pet.events"
	TopicAuthEvents = "auth.events"
)

// Pet event types.
const (
	PetCreated = "pet.created"
	PetUpdated = "pet.updated"
	PetDeleted = "pet.deleted"
)

// Auth event types.
const (
	AuthSignedUp     = "auth.signed_up"
	AuthSignedIn     = "auth.signed_in"
	AuthSignedOut    = "auth.signed_out"
	AuthTokenRevoked = "auth.token_revoked"
)

// PetChangedEvent is the payload of pet.created and pet.updated.
type PetChangedEvent struct {
	PetID      uuid.UUID `json:"pet_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Name       string    `json:"name"`
	Species    string    `json:"species"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PetDeletedEvent is the payload of pet.deleted.
type PetDeletedEvent struct {
	PetID      uuid.UUID `json:"pet_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// UserAuthEvent is the payload of the sign-up, sign-in and sign-out events.
type UserAuthEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TokenRevokedEvent announces that a token ID must be rejected until ExpiresAt.
type TokenRevokedEvent struct {
	TokenID    string    `json:"token_id"`
	UserID     uuid.UUID `json:"user_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	OccurredAt time.Time `json:"occurred_at"`
}
