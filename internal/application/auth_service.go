package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/account"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/events"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/auth"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
)

// CredentialsRequest is the body of sign-up and sign-in.
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the body of token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SignOutRequest optionally carries the refresh token so it is revoked too.
type SignOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserDTO is the API representation of an account.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionDTO is returned by sign-up, sign-in and refresh.
type SessionDTO struct {
	User UserDTO `json:"user"`
	auth.TokenPair
}

// AuthConfig tunes sign-in throttling. Rate is attempts per second per email.
type AuthConfig struct {
	SignInRate  rate.Limit
	SignInBurst int
}

// DefaultAuthConfig allows five attempts, then one every twelve seconds.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{SignInRate: rate.Every(12 * time.Second), SignInBurst: 5}
}

// AuthService implements the auth provider use cases.
type AuthService struct {
	users     account.Repository
	tokens    *auth.JWTManager
	publisher events.Publisher
	logger    *zap.Logger
	limiters  *limiterSet
	revoked   *revocationSet
	now       func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users account.Repository, tokens *auth.JWTManager, publisher events.Publisher, cfg AuthConfig, logger *zap.Logger) *AuthService {
	now := func() time.Time { return time.Now().UTC() }
	return &AuthService{
		users:     users,
		tokens:    tokens,
		publisher: publisher,
		logger:    logger,
		limiters:  newLimiterSet(cfg.SignInRate, cfg.SignInBurst),
		revoked:   newRevocationSet(now),
		now:       now,
	}
}

// SignUp registers a new account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, req CredentialsRequest) (*SessionDTO, error) {
	email := account.NormalizeEmail(req.Email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.NewConflictError("user already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err := account.NewUser(email, req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID().String()))
	s.publishUserEvent(ctx, events.AuthSignedUp, user)
	return s.issue(user)
}

// SignIn authenticates with email and password.
func (s *AuthService) SignIn(ctx context.Context, req CredentialsRequest) (*SessionDTO, error) {
	email := account.NormalizeEmail(req.Email)
	if !s.limiters.allow(email) {
		s.logger.Warn("sign-in rate limited", zap.String("email", email))
		return nil, domain.NewRateLimitError("too many sign-in attempts, try again later")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewUnauthorizedError("invalid login credentials")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := user.CheckPassword(req.Password); err != nil {
		return nil, domain.NewUnauthorizedError("invalid login credentials")
	}

	s.logger.Info("user signed in", zap.String("user_id", user.ID().String()))
	s.publishUserEvent(ctx, events.AuthSignedIn, user)
	return s.issue(user)
}

// Refresh rotates a refresh token into a new token pair.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*SessionDTO, error) {
	claims, err := s.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil || s.revoked.contains(claims.ID) {
		return nil, domain.NewUnauthorizedError("invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	s.revoke(ctx, claims)
	return s.issue(user)
}

// SignOut revokes the access token and, when given, the refresh token.
func (s *AuthService) SignOut(ctx context.Context, access *auth.Claims, req SignOutRequest) error {
	s.revoke(ctx, access)
	if req.RefreshToken != "" {
		if refresh, err := s.tokens.ValidateRefreshToken(req.RefreshToken); err == nil && refresh.UserID == access.UserID {
			s.revoke(ctx, refresh)
		}
	}

	s.logger.Info("user signed out", zap.String("user_id", access.UserID.String()))
	s.publisher.Publish(ctx, events.TopicAuthEvents, events.AuthSignedOut, access.UserID.String(), events.UserAuthEvent{
		UserID:     access.UserID,
		Email:      access.Email,
		OccurredAt: s.now(),
	})
	return nil
}

// CurrentUser returns the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := toUserDTO(user)
	return &dto, nil
}

// VerifyAccessToken validates token and rejects revoked ones.
func (s *AuthService) VerifyAccessToken(_ context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	if s.revoked.contains(claims.ID) {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

// ApplyRevocation records a revocation announced by another instance.
func (s *AuthService) ApplyRevocation(tokenID string, expiresAt time.Time) {
	s.revoked.add(tokenID, expiresAt)
}

func (s *AuthService) revoke(ctx context.Context, claims *auth.Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expiresAt := s.now()
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	s.revoked.add(claims.ID, expiresAt)
	s.publisher.Publish(ctx, events.TopicAuthEvents, events.AuthTokenRevoked, claims.UserID.String(), events.TokenRevokedEvent{
		TokenID:    claims.ID,
		UserID:     claims.UserID,
		ExpiresAt:  expiresAt,
		OccurredAt: s.now(),
	})
}

func (s *AuthService) issue(user *account.User) (*SessionDTO, error) {
	pair, err := s.tokens.GenerateTokenPair(user.ID(), user.Email())
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return &SessionDTO{User: toUserDTO(user), TokenPair: pair}, nil
}

func (s *AuthService) publishUserEvent(ctx context.Context, eventType string, user *account.User) {
	s.publisher.Publish(ctx, events.TopicAuthEvents, eventType, user.ID().String(), events.UserAuthEvent{
		UserID:     user.ID(),
		Email:      user.Email(),
		OccurredAt: s.now(),
	})
}

func toUserDTO(u *account.User) UserDTO {
	return UserDTO{ID: u.ID(), Email: u.Email(), CreatedAt: u.CreatedAt()}
}

// --- throttling and revocation ---

const maxTrackedLimiters = 10000

type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *limiterSet) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedLimiters {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

type revocationSet struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func newRevocationSet(now func() time.Time) *revocationSet {
	return &revocationSet{ids: make(map[string]time.Time), now: now}
}

func (r *revocationSet) add(id string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for k, exp := range r.ids {
		if !exp.After(now) {
			delete(r.ids, k)
		}
	}
	if expiresAt.After(now) {
		r.ids[id] = expiresAt
	}
}

func (r *revocationSet) contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.ids[id]
	return ok && exp.After(r.now())
}
