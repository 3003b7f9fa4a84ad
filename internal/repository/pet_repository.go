package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	petDomain "github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
)

// PetModel is the GORM model for the pets table.
type PetModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_pets_user_created,priority:1"`
	Name            string          `gorm:"type:varchar(100);not null"`
	Species         string          `gorm:"type:varchar(20);not null"`
	Breed           string          `gorm:"type:varchar(100);not null"`
	Age             int             `gorm:"not null"`
	Gender          string          `gorm:"type:varchar(10);not null"`
	Color           string          `gorm:"type:varchar(50);not null"`
	Weight          float64         `gorm:"type:numeric(6,2);not null"`
	ImageURL        *string         `gorm:"type:text"`
	MedicalNotes    *string         `gorm:"type:text"`
	LastVaccination *petDomain.Date `gorm:"type:date"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime:false;index:idx_pets_user_created,priority:2,sort:desc"`
	UpdatedAt       *time.Time      `gorm:"autoUpdateTime:false"`
}

func (PetModel) TableName() string { return "pets" }

// GormPetRepository implements pet.Repository using GORM. Every statement is
// filtered by user_id.
type GormPetRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormPetRepository(db *gorm.DB) *GormPetRepository {
	return &GormPetRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *GormPetRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]petDomain.Pet, error) {
	var models []PetModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	pets := make([]petDomain.Pet, len(models))
	for i := range models {
		pets[i] = toPetDomain(&models[i])
	}
	return pets, nil
}

func (r *GormPetRepository) Insert(ctx context.Context, ownerID uuid.UUID, in petDomain.Input) (*petDomain.Pet, error) {
	now := r.now()
	model := toPetModel(in)
	model.ID = uuid.New()
	model.UserID = ownerID
	model.CreatedAt = now
	model.UpdatedAt = &now

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return r.findOwned(ctx, ownerID, model.ID)
}

func (r *GormPetRepository) Update(ctx context.Context, ownerID, id uuid.UUID, in petDomain.Input, updatedAt time.Time) (*petDomain.Pet, error) {
	model := toPetModel(in)
	updatedAt = updatedAt.UTC()

	result := r.db.WithContext(ctx).
		Model(&PetModel{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(map[string]any{
			"name":             model.Name,
			"species":          model.Species,
			"breed":            model.Breed,
			"age":              model.Age,
			"gender":           model.Gender,
			"color":            model.Color,
			"weight":           model.Weight,
			"image_url":        model.ImageURL,
			"medical_notes":    model.MedicalNotes,
			"last_vaccination": model.LastVaccination,
			"updated_at":       updatedAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.NewNotFoundError("Pet", id.String())
	}
	return r.findOwned(ctx, ownerID, id)
}

func (r *GormPetRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&PetModel{}).Error
}

func (r *GormPetRepository) findOwned(ctx context.Context, ownerID, id uuid.UUID) (*petDomain.Pet, error) {
	var model PetModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Pet", id.String())
		}
		return nil, err
	}
	p := toPetDomain(&model)
	return &p, nil
}

// --- Conversions ---

func toPetModel(in petDomain.Input) *PetModel {
	return &PetModel{
		Name:            in.Name,
		Species:         string(in.Species),
		Breed:           in.Breed,
		Age:             in.Age,
		Gender:          string(in.Gender),
		Color:           in.Color,
		Weight:          in.Weight,
		ImageURL:        optional(in.ImageURL),
		MedicalNotes:    optional(in.MedicalNotes),
		LastVaccination: in.LastVaccination,
	}
}

func toPetDomain(m *PetModel) petDomain.Pet {
	owner := m.UserID
	p := petDomain.Pet{
		ID:              m.ID,
		OwnerID:         &owner,
		Name:            m.Name,
		Species:         petDomain.Species(m.Species),
		Breed:           m.Breed,
		Age:             m.Age,
		Gender:          petDomain.Gender(m.Gender),
		Color:           m.Color,
		Weight:          m.Weight,
		ImageURL:        deref(m.ImageURL),
		MedicalNotes:    deref(m.MedicalNotes),
		LastVaccination: m.LastVaccination,
		CreatedAt:       m.CreatedAt.UTC(),
	}
	if m.UpdatedAt != nil {
		u := m.UpdatedAt.UTC()
		p.UpdatedAt = &u
	}
	return p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
