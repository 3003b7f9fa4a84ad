// Package store holds the client-side pet collection. Two variants share one
// contract: LocalStore persists to a blob.Store, RemoteStore reconciles
// against a per-owner pet.Repository.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
)

// Status describes the collection's lifecycle.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusPopulated     Status = "populated"
	StatusEmpty         Status = "empty"
	StatusError         Status = "error"
)

// State is an immutable snapshot of a store.
type State struct {
	Pets    []pet.Pet
	Status  Status
	Loading bool
	Err     error
}

// Store is the pet collection contract. Failed operations return an error
// and leave the collection unchanged.
type Store interface {
	Fetch(ctx context.Context) error
	List() []pet.Pet
	State() State
	Add(ctx context.Context, in pet.Input) (*pet.Pet, error)
	Update(ctx context.Context, id uuid.UUID, in pet.Input) (*pet.Pet, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Subscribe(fn func(State)) (unsubscribe func())
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// collection is the shared snapshot holder. The slice is never mutated in
// place; every change swaps in a new one.
type collection struct {
	mu        sync.RWMutex
	pets      []pet.Pet
	status    Status
	err       error
	observers map[int]func(State)
	nextID    int
}

func newCollection() collection {
	return collection{status: StatusUninitialized, observers: make(map[int]func(State))}
}

func (c *collection) List() []pet.Pet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clonePets(c.pets)
}

func (c *collection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *collection) stateLocked() State {
	return State{
		Pets:    clonePets(c.pets),
		Status:  c.status,
		Loading: c.status == StatusLoading,
		Err:     c.err,
	}
}

func (c *collection) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// current returns the live slice. Callers must not modify it.
func (c *collection) current() []pet.Pet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pets
}

// replace swaps the collection and derives the status from its size.
func (c *collection) replace(pets []pet.Pet) {
	c.apply(func() {
		c.pets = pets
		c.status = statusFor(pets)
		c.err = nil
	})
}

// reconcile computes the next collection from the latest one under the lock.
func (c *collection) reconcile(next func(cur []pet.Pet) []pet.Pet) {
	c.apply(func() {
		c.pets = next(c.pets)
		c.status = statusFor(c.pets)
		c.err = nil
	})
}

func (c *collection) setStatus(status Status, err error) {
	c.apply(func() {
		c.status = status
		c.err = err
	})
}

// apply runs mutate under the lock and notifies observers after release.
func (c *collection) apply(mutate func()) {
	c.mu.Lock()
	mutate()
	snap := c.stateLocked()
	fns := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func statusFor(pets []pet.Pet) Status {
	if len(pets) == 0 {
		return StatusEmpty
	}
	return StatusPopulated
}

func clonePets(pets []pet.Pet) []pet.Pet {
	out := make([]pet.Pet, len(pets))
	copy(out, pets)
	return out
}

func prepend(p pet.Pet, pets []pet.Pet) []pet.Pet {
	out := make([]pet.Pet, 0, len(pets)+1)
	out = append(out, p)
	return append(out, pets...)
}

func indexOf(pets []pet.Pet, id uuid.UUID) int {
	for i := range pets {
		if pets[i].ID == id {
			return i
		}
	}
	return -1
}

func without(pets []pet.Pet, id uuid.UUID) []pet.Pet {
	out := make([]pet.Pet, 0, len(pets))
	for _, p := range pets {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
