package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/database"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/session"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/store/blob"
)

// --- helpers ---

func rex() pet.Input {
	in := pet.NewInput()
	in.Name = "Rex"
	in.Breed = "Lab"
	in.Age = 3
	in.Color = "black"
	in.Weight = 30
	return in
}

func named(name string) pet.Input {
	in := rex()
	in.Name = name
	return in
}

func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newBlobStore(t *testing.T) *blob.GormStore {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	s, err := blob.NewGormStore(db)
	require.NoError(t, err)
	return s
}

type flakyBlob struct {
	blob.Store
	saveErr error
	saves   int
}

func (f *flakyBlob) Save(ctx context.Context, key string, value []byte) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, key, value)
}

func assertBlobMatches(t *testing.T, blobs blob.Store, s *LocalStore) {
	t.Helper()
	raw, err := blobs.Load(context.Background(), StorageKey)
	require.NoError(t, err)
	persisted, err := DecodeCollection(raw)
	require.NoError(t, err)
	assert.Equal(t, s.List(), persisted)
}

// --- local store ---

func TestLocalStore_EmptyOnMissingBlob(t *testing.T) {
	s, err := NewLocalStore(context.Background(), newBlobStore(t), nil)
	require.NoError(t, err)
	assert.Empty(t, s.List())
	assert.Equal(t, StatusEmpty, s.State().Status)
	assert.False(t, s.State().Loading)
}

func TestLocalStore_AddAssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStore(t)
	s, err := NewLocalStore(ctx, blobs, nil, WithClock(tickingClock()))
	require.NoError(t, err)

	const n = 25
	ids := map[uuid.UUID]bool{}
	for i := 0; i < n; i++ {
		p, err := s.Add(ctx, rex())
		require.NoError(t, err)
		ids[p.ID] = true
	}
	assert.Len(t, s.List(), n)
	assert.Len(t, ids, n)
	assert.Equal(t, StatusPopulated, s.State().Status)
	assertBlobMatches(t, blobs, s)
}

func TestLocalStore_RexScenario(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStore(t)
	s, err := NewLocalStore(ctx, blobs, nil)
	require.NoError(t, err)

	p, err := s.Add(ctx, rex())
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Rex", list[0].Name)
	assert.Equal(t, pet.SpeciesDog, list[0].Species)
	assert.NotEqual(t, uuid.Nil, list[0].ID)
	assert.False(t, list[0].CreatedAt.IsZero())
	assert.Nil(t, list[0].OwnerID)
	assert.Nil(t, list[0].UpdatedAt)

	raw, err := blobs.Load(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, mustEncode(t, list), string(raw))
	assert.Contains(t, string(raw), `"version":0`)
	assert.Contains(t, string(raw), p.ID.String())
}

func mustEncode(t *testing.T, pets []pet.Pet) string {
	t.Helper()
	b, err := EncodeCollection(pets)
	require.NoError(t, err)
	return string(b)
}

func TestLocalStore_UpdateAge(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStore(t)
	s, err := NewLocalStore(ctx, blobs, nil)
	require.NoError(t, err)

	added, err := s.Add(ctx, rex())
	require.NoError(t, err)

	in := pet.FromRecord(*added)
	in.Age = 4
	updated, err := s.Update(ctx, added.ID, in)
	require.NoError(t, err)

	assert.Equal(t, added.ID, updated.ID)
	assert.Equal(t, added.CreatedAt, updated.CreatedAt)
	assert.Equal(t, 4, updated.Age)

	want := *added
	want.Age = 4
	assert.Equal(t, []pet.Pet{want}, s.List())
	assertBlobMatches(t, blobs, s)
}

func TestLocalStore_UpdateMissing(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBlob{Store: newBlobStore(t)}
	s, err := NewLocalStore(ctx, fb, nil)
	require.NoError(t, err)
	_, err = s.Add(ctx, rex())
	require.NoError(t, err)
	before := s.List()
	saves := fb.saves

	_, err = s.Update(ctx, uuid.New(), named("Ghost"))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, before, s.List())
	assert.Equal(t, saves, fb.saves)
}

func TestLocalStore_DeleteFirstOfTwo(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStore(t)
	s, err := NewLocalStore(ctx, blobs, nil, WithClock(tickingClock()))
	require.NoError(t, err)

	a, err := s.Add(ctx, named("A"))
	require.NoError(t, err)
	b, err := s.Add(ctx, named("B"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
	assertBlobMatches(t, blobs, s)
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBlob{Store: newBlobStore(t)}
	s, err := NewLocalStore(ctx, fb, nil)
	require.NoError(t, err)
	_, err = s.Add(ctx, rex())
	require.NoError(t, err)
	saves := fb.saves

	require.NoError(t, s.Delete(ctx, uuid.New()))
	assert.Len(t, s.List(), 1)
	assert.Equal(t, saves, fb.saves)
}

func TestLocalStore_WriteFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBlob{Store: newBlobStore(t)}
	s, err := NewLocalStore(ctx, fb, nil)
	require.NoError(t, err)
	added, err := s.Add(ctx, rex())
	require.NoError(t, err)
	before := s.List()

	fb.saveErr = blob.ErrQuotaExceeded
	_, err = s.Add(ctx, named("Big"))
	assert.ErrorIs(t, err, blob.ErrQuotaExceeded)
	_, err = s.Update(ctx, added.ID, named("Renamed"))
	assert.ErrorIs(t, err, blob.ErrQuotaExceeded)
	assert.ErrorIs(t, s.Delete(ctx, added.ID), blob.ErrQuotaExceeded)

	assert.Equal(t, before, s.List())
	fb.saveErr = nil
	assertBlobMatches(t, fb, s)
}

func TestLocalStore_Rehydrates(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStore(t)
	first, err := NewLocalStore(ctx, blobs, nil, WithClock(tickingClock()))
	require.NoError(t, err)
	_, err = first.Add(ctx, named("A"))
	require.NoError(t, err)
	_, err = first.Add(ctx, named("B"))
	require.NoError(t, err)

	second, err := NewLocalStore(ctx, blobs, nil)
	require.NoError(t, err)
	assert.Equal(t, first.List(), second.List())
	assert.Equal(t, "B", second.List()[0].Name)
}

func TestLocalStore_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	blobs := newBlobStore(t)
	require.NoError(t, blobs.Save(ctx, StorageKey, []byte("{not json")))

	s, err := NewLocalStore(ctx, blobs, nil)
	require.Error(t, err)
	assert.Equal(t, StatusError, s.State().Status)
	assert.Empty(t, s.List())
}

func TestLocalStore_SubscribersSeeSnapshots(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(ctx, newBlobStore(t), nil)
	require.NoError(t, err)

	var states []State
	unsub := s.Subscribe(func(st State) { states = append(states, st) })

	_, err = s.Add(ctx, rex())
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Len(t, states[0].Pets, 1)

	states[0].Pets[0].Name = "mutated"
	assert.Equal(t, "Rex", s.List()[0].Name)

	unsub()
	_, err = s.Add(ctx, rex())
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

// --- remote store ---

type principalBox struct {
	mu sync.Mutex
	p  *session.Principal
}

func (b *principalBox) Principal() *session.Principal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.p
}

func (b *principalBox) set(p *session.Principal) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

type fakeBackend struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]pet.Pet
	now  func() time.Time
	err  error
	hits int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rows: map[uuid.UUID][]pet.Pet{}, now: tickingClock()}
}

func (f *fakeBackend) FindByOwner(_ context.Context, owner uuid.UUID) ([]pet.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	if f.err != nil {
		return nil, f.err
	}
	return clonePets(f.rows[owner]), nil
}

func (f *fakeBackend) Insert(_ context.Context, owner uuid.UUID, in pet.Input) (*pet.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	if f.err != nil {
		return nil, f.err
	}
	o := owner
	p := pet.Pet{ID: uuid.New(), OwnerID: &o, CreatedAt: f.now()}.Apply(in)
	f.rows[owner] = prepend(p, f.rows[owner])
	return &p, nil
}

func (f *fakeBackend) Update(_ context.Context, owner, id uuid.UUID, in pet.Input, at time.Time) (*pet.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	if f.err != nil {
		return nil, f.err
	}
	rows := f.rows[owner]
	i := indexOf(rows, id)
	if i < 0 {
		return nil, domain.NewNotFoundError("Pet", id.String())
	}
	p := rows[i].Apply(in)
	p.UpdatedAt = &at
	rows[i] = p
	return &p, nil
}

func (f *fakeBackend) Delete(_ context.Context, owner, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	if f.err != nil {
		return f.err
	}
	f.rows[owner] = without(f.rows[owner], id)
	return nil
}

func signedIn() *principalBox {
	return &principalBox{p: &session.Principal{ID: uuid.New(), Email: "owner@example.com"}}
}

func TestRemoteStore_NoPrincipal(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := NewRemoteStore(&principalBox{}, backend, nil)

	assert.Equal(t, StatusUninitialized, s.State().Status)
	require.NoError(t, s.Fetch(ctx))
	assert.Empty(t, s.List())
	assert.Equal(t, StatusEmpty, s.State().Status)
	assert.False(t, s.State().Loading)

	p, err := s.Add(ctx, rex())
	assert.NoError(t, err)
	assert.Nil(t, p)
	_, err = s.Update(ctx, uuid.New(), rex())
	assert.NoError(t, err)
	assert.NoError(t, s.Delete(ctx, uuid.New()))

	assert.Zero(t, backend.hits)
	assert.Empty(t, s.List())
}

func TestRemoteStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	box := signedIn()
	backend := newFakeBackend()
	s := NewRemoteStore(box, backend, nil, WithClock(tickingClock()))
	require.NoError(t, s.Fetch(ctx))

	a, err := s.Add(ctx, named("A"))
	require.NoError(t, err)
	require.NotNil(t, a.OwnerID)
	assert.Equal(t, box.p.ID, *a.OwnerID)
	b, err := s.Add(ctx, named("B"))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID, a.ID}, ids(s.List()))

	in := pet.FromRecord(*a)
	in.Age = 4
	u, err := s.Update(ctx, a.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 4, u.Age)
	assert.Equal(t, a.CreatedAt, u.CreatedAt)
	assert.Equal(t, a.OwnerID, u.OwnerID)
	require.NotNil(t, u.UpdatedAt)
	assert.Equal(t, *u, s.List()[1])

	require.NoError(t, s.Delete(ctx, a.ID))
	assert.Equal(t, []uuid.UUID{b.ID}, ids(s.List()))

	// Memory matches the backend after a reload.
	before := s.List()
	require.NoError(t, s.Fetch(ctx))
	assert.Equal(t, before, s.List())
}

func TestRemoteStore_FailuresLeaveStateUnchanged(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := NewRemoteStore(signedIn(), backend, nil)
	require.NoError(t, s.Fetch(ctx))
	a, err := s.Add(ctx, rex())
	require.NoError(t, err)
	before := s.List()

	backend.err = errors.New("row level security violation")

	_, err = s.Add(ctx, named("B"))
	assert.Error(t, err)
	assert.Equal(t, before, s.List())

	_, err = s.Update(ctx, a.ID, named("Renamed"))
	assert.Error(t, err)
	assert.Equal(t, before, s.List())

	assert.Error(t, s.Delete(ctx, a.ID))
	assert.Equal(t, before, s.List())
}

func TestRemoteStore_UpdateMissingRow(t *testing.T) {
	ctx := context.Background()
	s := NewRemoteStore(signedIn(), newFakeBackend(), nil)
	require.NoError(t, s.Fetch(ctx))

	_, err := s.Update(ctx, uuid.New(), rex())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Empty(t, s.List())
}

func TestRemoteStore_FetchErrorKeepsStale(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := NewRemoteStore(signedIn(), backend, nil)
	require.NoError(t, s.Fetch(ctx))
	_, err := s.Add(ctx, rex())
	require.NoError(t, err)

	backend.err = errors.New("connection refused")
	require.Error(t, s.Fetch(ctx))

	st := s.State()
	assert.Equal(t, StatusError, st.Status)
	assert.False(t, st.Loading)
	assert.Error(t, st.Err)
	assert.Len(t, st.Pets, 1)
}

func TestRemoteStore_SignOutThenFetchEmpties(t *testing.T) {
	ctx := context.Background()
	box := signedIn()
	s := NewRemoteStore(box, newFakeBackend(), nil)
	require.NoError(t, s.Fetch(ctx))
	_, err := s.Add(ctx, rex())
	require.NoError(t, err)

	box.set(nil)
	require.NoError(t, s.Fetch(ctx))
	assert.Empty(t, s.List())
}

func TestRemoteStore_LoadingObserved(t *testing.T) {
	ctx := context.Background()
	s := NewRemoteStore(signedIn(), newFakeBackend(), nil)

	var statuses []Status
	s.Subscribe(func(st State) { statuses = append(statuses, st.Status) })
	require.NoError(t, s.Fetch(ctx))
	assert.Equal(t, []Status{StatusLoading, StatusEmpty}, statuses)
}

func ids(pets []pet.Pet) []uuid.UUID {
	out := make([]uuid.UUID, len(pets))
	for i, p := range pets {
		out[i] = p.ID
	}
	return out
}
