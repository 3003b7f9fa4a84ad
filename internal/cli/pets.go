package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/view"
)

func newPetsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pets",
		Aliases: []string{"pet"},
		Short:   "List, add, edit and delete pets",
	}
	cmd.AddCommand(
		newListCommand(app),
		newAddCommand(app),
		newEditCommand(app),
		newDeleteCommand(app),
	)
	return cmd
}

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pets, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := app.Board(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			pets := board.Pets()
			if len(pets) == 0 {
				fmt.Fprintln(out, view.EmptyMessage)
				return nil
			}
			for _, p := range pets {
				fmt.Fprintf(out, "%s  %s\n", shortID(p.ID), view.RenderCard(p))
			}
			return nil
		},
	}
}

func newAddCommand(app *App) *cobra.Command {
	var f petFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a pet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := app.Board(cmd.Context())
			if err != nil {
				return err
			}
			board.OpenAdd()
			in := board.Dialog().Form
			if err := f.apply(cmd.Flags(), &in); err != nil {
				board.Cancel()
				return err
			}
			created, err := board.Submit(cmd.Context(), in)
			if err != nil {
				board.Cancel()
				return petFailure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s  %s\n", shortID(created.ID), view.RenderCard(*created))
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newEditCommand(app *App) *cobra.Command {
	var f petFlags

	cmd := &cobra.Command{
		Use:   "edit [pet-id]",
		Short: "Change a pet's details",
		Long:  `Only the flags given are changed. An id prefix is accepted when it is unique.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := app.Board(cmd.Context())
			if err != nil {
				return err
			}
			target, err := resolvePet(board.Pets(), args[0])
			if err != nil {
				return err
			}
			board.OpenEdit(target)
			in := board.Dialog().Form
			if err := f.apply(cmd.Flags(), &in); err != nil {
				board.Cancel()
				return err
			}
			updated, err := board.Submit(cmd.Context(), in)
			if err != nil {
				board.Cancel()
				return petFailure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s  %s\n", shortID(updated.ID), view.RenderCard(*updated))
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newDeleteCommand(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete [pet-id]",
		Aliases: []string{"rm"},
		Short:   "Delete a pet",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := app.Board(cmd.Context())
			if err != nil {
				return err
			}
			target, err := resolvePet(board.Pets(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			board.RequestDelete(target.ID)
			if !yes {
				answer, err := app.prompt(out, fmt.Sprintf("Delete %s? [y/N] ", target.Name))
				if err != nil {
					board.Cancel()
					return err
				}
				if a := strings.ToLower(answer); a != "y" && a != "yes" {
					board.Cancel()
					fmt.Fprintln(out, "Cancelled")
					return nil
				}
			}
			if err := board.ConfirmDelete(cmd.Context()); err != nil {
				return petFailure(err)
			}
			fmt.Fprintf(out, "Deleted %s\n", target.Name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}

// petFlags are the form fields accepted by add and edit.
type petFlags struct {
	name, species, breed, gender, color string
	imageURL, notes, vaccinated         string
	age                                 int
	weight                              float64
}

func (f *petFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "Name")
	fs.StringVar(&f.species, "species", "", "Species: "+speciesList())
	fs.StringVar(&f.breed, "breed", "", "Breed")
	fs.IntVar(&f.age, "age", 0, "Age in years")
	fs.StringVar(&f.gender, "gender", "", "Gender: male or female")
	fs.StringVar(&f.color, "color", "", "Color")
	fs.Float64Var(&f.weight, "weight", 0, "Weight in kg")
	fs.StringVar(&f.imageURL, "image-url", "", "Photo URL")
	fs.StringVar(&f.notes, "notes", "", "Medical notes")
	fs.StringVar(&f.vaccinated, "vaccinated", "", "Last vaccination date (YYYY-MM-DD, empty to clear)")
}

// apply copies the flags the user set onto in.
func (f *petFlags) apply(fs *pflag.FlagSet, in *pet.Input) error {
	set := fs.Changed
	if set("name") {
		in.Name = f.name
	}
	if set("species") {
		in.Species = pet.Species(strings.ToLower(f.species))
	}
	if set("breed") {
		in.Breed = f.breed
	}
	if set("age") {
		in.Age = f.age
	}
	if set("gender") {
		in.Gender = pet.Gender(strings.ToLower(f.gender))
	}
	if set("color") {
		in.Color = f.color
	}
	if set("weight") {
		in.Weight = f.weight
	}
	if set("image-url") {
		in.ImageURL = f.imageURL
	}
	if set("notes") {
		in.MedicalNotes = f.notes
	}
	if set("vaccinated") {
		if f.vaccinated == "" {
			in.LastVaccination = nil
			return nil
		}
		d, err := pet.ParseDate(f.vaccinated)
		if err != nil {
			return fmt.Errorf("--vaccinated: %w", err)
		}
		in.LastVaccination = &d
	}
	return nil
}

func speciesList() string {
	names := make([]string, 0, len(pet.AllSpecies))
	for _, s := range pet.AllSpecies {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// resolvePet finds the pet whose id equals or uniquely starts with ref.
func resolvePet(pets []pet.Pet, ref string) (pet.Pet, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if id, err := uuid.Parse(ref); err == nil {
		for _, p := range pets {
			if p.ID == id {
				return p, nil
			}
		}
		return pet.Pet{}, domain.NewNotFoundError("pet", ref)
	}

	var matches []pet.Pet
	for _, p := range pets {
		if ref != "" && strings.HasPrefix(p.ID.String(), ref) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return pet.Pet{}, domain.NewNotFoundError("pet", ref)
	case 1:
		return matches[0], nil
	}
	return pet.Pet{}, fmt.Errorf("id prefix %q matches %d pets", ref, len(matches))
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// petFailure formats validation errors field by field.
func petFailure(err error) error {
	var ae *domain.AppError
	if !errors.As(err, &ae) || len(ae.Fields) == 0 {
		return err
	}
	fields := make([]string, 0, len(ae.Fields))
	for name, rule := range ae.Fields {
		fields = append(fields, name+": "+rule)
	}
	sort.Strings(fields)
	return fmt.Errorf("%s\n  %s", ae.Message, strings.Join(fields, "\n  "))
}
