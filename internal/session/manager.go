package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Manager owns the current Session. It is safe for concurrent use.
type Manager struct {
	provider Provider
	logger   *zap.Logger

	mu        sync.RWMutex
	principal *Principal
	loading   bool
	observers map[int]func(Session)
	nextID    int

	initOnce    sync.Once
	initErr     error
	unsubscribe func()
}

// NewManager creates a Manager in the loading state.
func NewManager(provider Provider, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		provider:  provider,
		logger:    logger,
		loading:   true,
		observers: make(map[int]func(Session)),
	}
}

// Initialize performs the initial session check and subscribes to provider
// session changes. Only the first call has any effect; later calls return
// the first call's error.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		p, err := m.provider.CurrentSession(ctx)
		if err != nil {
			m.logger.Warn("initial session check failed", zap.Error(err))
			p = nil
			m.initErr = err
		}
		m.set(func() {
			m.principal = clonePrincipal(p)
			m.loading = false
		})

		unsub := m.provider.OnSessionChange(m.handleChange)
		m.mu.Lock()
		m.unsubscribe = unsub
		m.mu.Unlock()
	})
	return m.initErr
}

func (m *Manager) handleChange(p *Principal) {
	m.logger.Debug("session changed", zap.Bool("authenticated", p != nil))
	m.set(func() { m.principal = clonePrincipal(p) })
}

// SignUp registers and, on success, signs in.
func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	p, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	m.adopt(p)
	return nil
}

// SignIn authenticates with email and password.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	p, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	m.adopt(p)
	return nil
}

// SignOut ends the session. The principal is cleared even when the provider
// call fails; that failure is still returned.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.provider.SignOut(ctx)
	if err != nil {
		m.logger.Warn("provider sign-out failed", zap.Error(err))
	}
	m.set(func() { m.principal = nil })
	return err
}

func (m *Manager) adopt(p *Principal) {
	if p == nil {
		return
	}
	m.set(func() { m.principal = clonePrincipal(p) })
}

// Session returns a snapshot of the current state.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Principal returns the current principal, or nil.
func (m *Manager) Principal() *Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clonePrincipal(m.principal)
}

// Subscribe registers fn for every state change.
func (m *Manager) Subscribe(fn func(Session)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

// Close drops the provider subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// set applies mutate under the lock and notifies observers after releasing it.
func (m *Manager) set(mutate func()) {
	m.mu.Lock()
	mutate()
	snap := m.snapshotLocked()
	fns := make([]func(Session), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (m *Manager) snapshotLocked() Session {
	return Session{Principal: clonePrincipal(m.principal), Loading: m.loading}
}

func clonePrincipal(p *Principal) *Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
