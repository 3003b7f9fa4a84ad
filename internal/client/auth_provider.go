package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/httpclient"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/session"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/store/blob"
)

// SessionKey is the blob key of the persisted session.
const SessionKey = "auth-session"

// refreshLeeway is how close to expiry an access token gets refreshed.
const refreshLeeway = time.Minute

type storedSession struct {
	User             session.Principal `json:"user"`
	AccessToken      string            `json:"access_token"`
	RefreshToken     string            `json:"refresh_token"`
	ExpiresAt        time.Time         `json:"expires_at"`
	RefreshExpiresAt time.Time         `json:"refresh_expires_at"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthProvider implements session.Provider against the server's auth API and
// persists the token pair in a blob.Store.
type AuthProvider struct {
	http   *httpclient.Client
	blobs  blob.Store
	logger *zap.Logger
	now    func() time.Time

	// refreshMu serialises token refreshes; the server rotates the refresh
	// token, so only one caller may spend it.
	refreshMu sync.Mutex

	mu        sync.Mutex
	listeners map[int]func(*session.Principal)
	nextID    int
}

var _ session.Provider = (*AuthProvider)(nil)

// NewAuthProvider creates an AuthProvider.
func NewAuthProvider(c *httpclient.Client, blobs blob.Store, logger *zap.Logger) *AuthProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthProvider{
		http:      c,
		blobs:     blobs,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func(*session.Principal)),
	}
}

func (a *AuthProvider) SignUp(ctx context.Context, email, password string) (*session.Principal, error) {
	return a.authenticate(ctx, "/api/v1/auth/signup", email, password)
}

func (a *AuthProvider) SignIn(ctx context.Context, email, password string) (*session.Principal, error) {
	return a.authenticate(ctx, "/api/v1/auth/signin", email, password)
}

func (a *AuthProvider) authenticate(ctx context.Context, path, email, password string) (*session.Principal, error) {
	var out envelope[storedSession]
	err := a.http.DoJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   path,
		In:     credentials{Email: email, Password: password},
		Out:    &out,
	})
	if err != nil {
		return nil, authError(err)
	}
	if err := a.persist(ctx, out.Data); err != nil {
		return nil, session.NewAuthError(session.CodeUnavailable, "could not persist session", err)
	}
	p := out.Data.User
	a.notify(&p)
	return &p, nil
}

// SignOut revokes the session server-side. The persisted session is removed
// even when that call fails.
func (a *AuthProvider) SignOut(ctx context.Context) error {
	s, err := a.load(ctx)
	if err != nil {
		a.logger.Warn("could not read persisted session", zap.Error(err))
	}

	var callErr error
	if s != nil {
		callErr = a.http.DoJSON(ctx, httpclient.Request{
			Method: http.MethodPost,
			Path:   "/api/v1/auth/signout",
			Token:  s.AccessToken,
			In:     map[string]string{"refresh_token": s.RefreshToken},
		})
	}
	if err := a.clear(ctx); err != nil {
		a.logger.Warn("could not clear persisted session", zap.Error(err))
	}
	a.notify(nil)

	// An already-expired token means the server has nothing left to revoke.
	if callErr != nil && httpclient.StatusCode(callErr) != http.StatusUnauthorized {
		return authError(callErr)
	}
	return nil
}

// CurrentSession returns the persisted principal after confirming it with
// the server. A session the server rejects is discarded.
func (a *AuthProvider) CurrentSession(ctx context.Context) (*session.Principal, error) {
	s, err := a.fresh(ctx)
	if err != nil || s == nil {
		return nil, err
	}

	var out envelope[struct {
		User session.Principal `json:"user"`
	}]
	err = a.http.DoJSON(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/auth/session",
		Token:  s.AccessToken,
		Out:    &out,
	})
	if err != nil {
		if rejected(err) {
			a.drop(ctx)
			return nil, nil
		}
		return nil, authError(err)
	}
	p := out.Data.User
	return &p, nil
}

// AccessToken returns a valid access token, refreshing it when needed.
func (a *AuthProvider) AccessToken(ctx context.Context) (string, error) {
	s, err := a.fresh(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", domain.NewUnauthorizedError("not signed in")
	}
	return s.AccessToken, nil
}

func (a *AuthProvider) OnSessionChange(fn func(*session.Principal)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

// fresh loads the persisted session and refreshes the access token when it
// is about to expire. It returns nil when there is no usable session.
func (a *AuthProvider) fresh(ctx context.Context) (*storedSession, error) {
	s, err := a.load(ctx)
	if err != nil || s == nil || !a.expiring(s) {
		return s, err
	}

	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if s, err = a.load(ctx); err != nil || s == nil {
		return nil, err
	}
	if !a.now().Before(s.RefreshExpiresAt) && !s.RefreshExpiresAt.IsZero() {
		a.drop(ctx)
		return nil, nil
	}
	if !a.expiring(s) {
		return s, nil
	}

	var out envelope[storedSession]
	err = a.http.DoJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/auth/refresh",
		In:     map[string]string{"refresh_token": s.RefreshToken},
		Out:    &out,
	})
	if err != nil {
		if rejected(err) {
			a.drop(ctx)
			return nil, nil
		}
		return nil, authError(err)
	}
	if err := a.persist(ctx, out.Data); err != nil {
		return nil, session.NewAuthError(session.CodeUnavailable, "could not persist session", err)
	}
	a.logger.Debug("access token refreshed")
	p := out.Data.User
	a.notify(&p)
	return &out.Data, nil
}

// expiring reports whether s must be refreshed before use.
func (a *AuthProvider) expiring(s *storedSession) bool {
	now := a.now()
	if !s.RefreshExpiresAt.IsZero() && !now.Before(s.RefreshExpiresAt) {
		return true
	}
	return !now.Add(refreshLeeway).Before(s.ExpiresAt)
}

func rejected(err error) bool {
	code := httpclient.StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusNotFound
}

func (a *AuthProvider) load(ctx context.Context) (*storedSession, error) {
	raw, err := a.blobs.Load(ctx, SessionKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s storedSession
	if err := json.Unmarshal(raw, &s); err != nil || s.AccessToken == "" {
		a.logger.Warn("discarding unreadable persisted session", zap.Error(err))
		_ = a.clear(ctx)
		return nil, nil
	}
	return &s, nil
}

func (a *AuthProvider) persist(ctx context.Context, s storedSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return a.blobs.Save(ctx, SessionKey, raw)
}

func (a *AuthProvider) clear(ctx context.Context) error {
	return a.blobs.Delete(ctx, SessionKey)
}

// drop discards a session the server no longer accepts.
func (a *AuthProvider) drop(ctx context.Context) {
	if err := a.clear(ctx); err != nil {
		a.logger.Warn("could not clear persisted session", zap.Error(err))
	}
	a.notify(nil)
}

func (a *AuthProvider) notify(p *session.Principal) {
	a.mu.Lock()
	fns := make([]func(*session.Principal), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}
