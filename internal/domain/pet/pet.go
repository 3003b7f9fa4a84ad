// Package pet is the pet record model shared by the stores, the API and the CLI.
package pet

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
)

// Species is the kind of animal.
type Species string

const (
	SpeciesDog    Species = "dog"
	SpeciesCat    Species = "cat"
	SpeciesBird   Species = "bird"
	SpeciesRabbit Species = "rabbit"
	SpeciesOther  Species = "other"
)

// AllSpecies lists the accepted species in form order.
var AllSpecies = []Species{SpeciesDog, SpeciesCat, SpeciesBird, SpeciesRabbit, SpeciesOther}

// Gender of the pet.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Pet is a single pet record. Values are treated as immutable once they leave
// a store; mutations produce new values.
type Pet struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         *uuid.UUID `json:"user_id,omitempty"`
	Name            string     `json:"name"`
	Species         Species    `json:"species"`
	Breed           string     `json:"breed"`
	Age             int        `json:"age"`
	Gender          Gender     `json:"gender"`
	Color           string     `json:"color"`
	Weight          float64    `json:"weight"`
	ImageURL        string     `json:"image_url,omitempty"`
	MedicalNotes    string     `json:"medical_notes,omitempty"`
	LastVaccination *Date      `json:"last_vaccination,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// Input is the user-editable part of a Pet.
type Input struct {
	Name            string  `json:"name" binding:"required,max=100"`
	Species         Species `json:"species" binding:"required,oneof=dog cat bird rabbit other"`
	Breed           string  `json:"breed" binding:"required,max=100"`
	Age             int     `json:"age" binding:"gte=0,lte=200"`
	Gender          Gender  `json:"gender" binding:"required,oneof=male female"`
	Color           string  `json:"color" binding:"max=50"`
	Weight          float64 `json:"weight" binding:"gte=0,lte=9999.99"`
	ImageURL        string  `json:"image_url,omitempty" binding:"omitempty,url"`
	MedicalNotes    string  `json:"medical_notes,omitempty"`
	LastVaccination *Date   `json:"last_vaccination,omitempty"`
}

// NewInput returns the blank form.
func NewInput() Input {
	return Input{Species: SpeciesDog, Gender: GenderMale}
}

// FromRecord derives the editable shape of p.
func FromRecord(p Pet) Input {
	return Input{
		Name:            p.Name,
		Species:         p.Species,
		Breed:           p.Breed,
		Age:             p.Age,
		Gender:          p.Gender,
		Color:           p.Color,
		Weight:          p.Weight,
		ImageURL:        p.ImageURL,
		MedicalNotes:    p.MedicalNotes,
		LastVaccination: p.LastVaccination,
	}
}

// Normalized trims the name and breed and drops a zero vaccination date.
func (in Input) Normalized() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Breed = strings.TrimSpace(in.Breed)
	if in.LastVaccination != nil && in.LastVaccination.IsZero() {
		in.LastVaccination = nil
	}
	return in
}

// Apply returns a copy of p with the editable fields replaced by the
// normalized in. ID, OwnerID, CreatedAt and UpdatedAt are carried over
// unchanged.
func (p Pet) Apply(in Input) Pet {
	in = in.Normalized()
	p.Name = in.Name
	p.Species = in.Species
	p.Breed = in.Breed
	p.Age = in.Age
	p.Gender = in.Gender
	p.Color = in.Color
	p.Weight = in.Weight
	p.ImageURL = in.ImageURL
	p.MedicalNotes = in.MedicalNotes
	p.LastVaccination = in.LastVaccination
	return p
}

// IsOwnedBy checks if the pet belongs to the given owner.
func (p Pet) IsOwnedBy(ownerID uuid.UUID) bool {
	return p.OwnerID != nil && *p.OwnerID == ownerID
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the normalized in against the form rules and returns a
// validation error naming each offending field.
func (in Input) Validate() error {
	err := validate.Struct(in.Normalized())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		names = append(names, fe.Field())
	}
	return domain.NewValidationError("invalid pet: "+strings.Join(names, ", "), fields)
}
