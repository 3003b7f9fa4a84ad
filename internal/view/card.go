package view

import (
	"strconv"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
)

// SpeciesGlyph returns the card picture for a species.
func SpeciesGlyph(s pet.Species) string {
	switch s {
	case pet.SpeciesDog:
		return "🐕"
	case pet.SpeciesCat:
		return "🐈"
	default:
		return "🐾"
	}
}

// GenderSymbol returns the card badge for a gender.
func GenderSymbol(g pet.Gender) string {
	if g == pet.GenderMale {
		return "♂"
	}
	return "♀"
}

// AgeLabel renders an age in years.
func AgeLabel(age int) string {
	if age == 1 {
		return "1 year"
	}
	return strconv.Itoa(age) + " years"
}

// RenderCard renders p as one line.
func RenderCard(p pet.Pet) string {
	var b strings.Builder
	b.WriteString(SpeciesGlyph(p.Species))
	b.WriteString(" ")
	b.WriteString(p.Name)
	b.WriteString(" ")
	b.WriteString(GenderSymbol(p.Gender))
	b.WriteString(" · ")
	b.WriteString(p.Breed)
	b.WriteString(" · ")
	b.WriteString(AgeLabel(p.Age))
	b.WriteString(" · ")
	b.WriteString(strconv.FormatFloat(p.Weight, 'f', -1, 64))
	b.WriteString("kg")
	if p.LastVaccination != nil {
		b.WriteString(" · vaccinated ")
		b.WriteString(p.LastVaccination.String())
	}
	if p.ImageURL != "" {
		b.WriteString(" · 📷 ")
		b.WriteString(p.ImageURL)
	}
	return b.String()
}

// EmptyMessage is shown when there are no pets.
const EmptyMessage = "🐾 No pets yet. Start by adding your first pet."

// RenderList renders every pet card, or EmptyMessage.
func RenderList(pets []pet.Pet) string {
	if len(pets) == 0 {
		return EmptyMessage
	}
	lines := make([]string, len(pets))
	for i, p := range pets {
		lines[i] = RenderCard(p)
	}
	return strings.Join(lines, "\n")
}
