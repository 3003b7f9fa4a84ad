// Package view holds the presentation state of the pet board: which dialog
// is open, what it is editing, and how a pet renders as a card.
package view

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/store"
)

// DialogKind is the open dialog.
type DialogKind int

const (
	DialogNone DialogKind = iota
	DialogForm
	DialogConfirmDelete
)

// Dialog is the current dialog state. Editing is nil when the form adds a
// new pet.
type Dialog struct {
	Kind       DialogKind
	Editing    *pet.Pet
	Form       pet.Input
	DeletingID uuid.UUID
}

// Board drives a store.Store from user intents.
type Board struct {
	store store.Store

	mu     sync.Mutex
	dialog Dialog
}

func NewBoard(s store.Store) *Board {
	return &Board{store: s}
}

// Pets returns the store's current collection.
func (b *Board) Pets() []pet.Pet { return b.store.List() }

// Dialog returns the current dialog state.
func (b *Board) Dialog() Dialog {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dialog
}

// OpenAdd opens a blank form.
func (b *Board) OpenAdd() {
	b.setDialog(Dialog{Kind: DialogForm, Form: pet.NewInput()})
}

// OpenEdit opens the form pre-filled from p.
func (b *Board) OpenEdit(p pet.Pet) {
	b.setDialog(Dialog{Kind: DialogForm, Editing: &p, Form: pet.FromRecord(p)})
}

// Submit validates in and saves it. Validation failures keep the form open;
// otherwise the form closes whether or not the store accepted the write.
func (b *Board) Submit(ctx context.Context, in pet.Input) (*pet.Pet, error) {
	in = in.Normalized()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	editing := b.dialog.Editing
	b.dialog = Dialog{}
	b.mu.Unlock()

	if editing != nil {
		return b.store.Update(ctx, editing.ID, in)
	}
	return b.store.Add(ctx, in)
}

// RequestDelete asks for confirmation before deleting id.
func (b *Board) RequestDelete(id uuid.UUID) {
	b.setDialog(Dialog{Kind: DialogConfirmDelete, DeletingID: id})
}

// ConfirmDelete deletes the pending pet. It does nothing when no deletion
// is pending.
func (b *Board) ConfirmDelete(ctx context.Context) error {
	b.mu.Lock()
	d := b.dialog
	if d.Kind == DialogConfirmDelete {
		b.dialog = Dialog{}
	}
	b.mu.Unlock()

	if d.Kind != DialogConfirmDelete {
		return nil
	}
	return b.store.Delete(ctx, d.DeletingID)
}

// Cancel closes any dialog.
func (b *Board) Cancel() {
	b.setDialog(Dialog{})
}

func (b *Board) setDialog(d Dialog) {
	b.mu.Lock()
	b.dialog = d
	b.mu.Unlock()
}
