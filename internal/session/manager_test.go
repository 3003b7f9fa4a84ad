package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu         sync.Mutex
	current    *Principal
	currErr    error
	signInErr  error
	signOutErr error
	listeners  map[int]func(*Principal)
	next       int
	calls      map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{listeners: map[int]func(*Principal){}, calls: map[string]int{}}
}

func (f *fakeProvider) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeProvider) bump(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeProvider) SignUp(_ context.Context, email, _ string) (*Principal, error) {
	f.bump("signup")
	if email == "taken@example.com" {
		return nil, NewAuthError(CodeAlreadyRegistered, "user already registered", nil)
	}
	return &Principal{ID: uuid.New(), Email: email}, nil
}

func (f *fakeProvider) SignIn(_ context.Context, email, _ string) (*Principal, error) {
	f.bump("signin")
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &Principal{ID: uuid.New(), Email: email}, nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	f.bump("signout")
	return f.signOutErr
}

func (f *fakeProvider) CurrentSession(context.Context) (*Principal, error) {
	f.bump("current")
	return f.current, f.currErr
}

func (f *fakeProvider) OnSessionChange(fn func(*Principal)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["subscribe"]++
	id := f.next
	f.next++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeProvider) emit(p *Principal) {
	f.mu.Lock()
	fns := make([]func(*Principal), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func TestManager_InitializeOnce(t *testing.T) {
	fp := newFakeProvider()
	fp.current = &Principal{ID: uuid.New(), Email: "a@example.com"}
	m := NewManager(fp, nil)

	assert.True(t, m.Session().Loading)
	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Initialize(context.Background()))

	s := m.Session()
	assert.False(t, s.Loading)
	require.NotNil(t, s.Principal)
	assert.Equal(t, "a@example.com", s.Principal.Email)
	assert.Equal(t, 1, fp.count("current"))
	assert.Equal(t, 1, fp.count("subscribe"))
}

func TestManager_InitializeError(t *testing.T) {
	fp := newFakeProvider()
	fp.current = &Principal{ID: uuid.New()}
	fp.currErr = errors.New("network down")
	m := NewManager(fp, nil)

	err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.False(t, m.Session().Loading)
	assert.Nil(t, m.Principal())
}

func TestManager_SignInAndProviderEvents(t *testing.T) {
	fp := newFakeProvider()
	m := NewManager(fp, nil)
	require.NoError(t, m.Initialize(context.Background()))

	var seen []Session
	unsub := m.Subscribe(func(s Session) { seen = append(seen, s) })

	require.NoError(t, m.SignIn(context.Background(), "b@example.com", "secret1"))
	require.NotNil(t, m.Principal())
	assert.Equal(t, "b@example.com", m.Principal().Email)

	fp.emit(nil)
	assert.Nil(t, m.Principal())

	unsub()
	fp.emit(&Principal{ID: uuid.New(), Email: "c@example.com"})
	assert.Equal(t, "c@example.com", m.Principal().Email)
	assert.Len(t, seen, 2)
}

func TestManager_SignInFailureKeepsState(t *testing.T) {
	fp := newFakeProvider()
	fp.signInErr = NewAuthError(CodeInvalidCredentials, "invalid login credentials", nil)
	m := NewManager(fp, nil)
	require.NoError(t, m.Initialize(context.Background()))

	err := m.SignIn(context.Background(), "b@example.com", "bad")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidCredentials, CodeOf(err))
	assert.Nil(t, m.Principal())
	assert.False(t, m.Session().Loading)
}

func TestManager_SignUpAlreadyRegistered(t *testing.T) {
	m := NewManager(newFakeProvider(), nil)
	err := m.SignUp(context.Background(), "taken@example.com", "secret1")
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, CodeAlreadyRegistered, ae.Code)
	assert.Nil(t, m.Principal())
}

func TestManager_SignOutFailsOpen(t *testing.T) {
	fp := newFakeProvider()
	fp.current = &Principal{ID: uuid.New(), Email: "a@example.com"}
	fp.signOutErr = NewAuthError(CodeUnavailable, "timeout", nil)
	m := NewManager(fp, nil)
	require.NoError(t, m.Initialize(context.Background()))

	err := m.SignOut(context.Background())
	assert.Error(t, err)
	assert.Nil(t, m.Principal())
}

func TestManager_CloseDropsSubscription(t *testing.T) {
	fp := newFakeProvider()
	m := NewManager(fp, nil)
	require.NoError(t, m.Initialize(context.Background()))
	m.Close()

	fp.emit(&Principal{ID: uuid.New()})
	assert.Nil(t, m.Principal())
}

func TestManager_PrincipalIsSnapshot(t *testing.T) {
	fp := newFakeProvider()
	m := NewManager(fp, nil)
	require.NoError(t, m.SignIn(context.Background(), "a@example.com", "secret1"))

	p := m.Principal()
	p.Email = "mutated"
	assert.Equal(t, "a@example.com", m.Principal().Email)
}
