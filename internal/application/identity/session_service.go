package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/invoicer/backend/internal/domain/identity"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/invoicer/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// MsgInvalidCredentials is returned for any failed sign-in
const MsgInvalidCredentials = "Invalid login credentials"

// SessionService signs users in and out and tracks session changes
type SessionService struct {
	users     identity.UserRepository
	tokens    *auth.JWTService
	blacklist auth.TokenBlacklist
	logger    *zap.Logger
	now       func() time.Time

	mu          sync.RWMutex
	nextID      int
	subscribers map[int]func(SessionEvent)
}

// NewSessionService creates a new session service
func NewSessionService(
	users identity.UserRepository,
	tokens *auth.JWTService,
	blacklist auth.TokenBlacklist,
	logger *zap.Logger,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if blacklist == nil {
		blacklist = auth.NewInMemoryTokenBlacklist()
	}
	return &SessionService{
		users:       users,
		tokens:      tokens,
		blacklist:   blacklist,
		logger:      logger,
		now:         time.Now,
		subscribers: make(map[int]func(SessionEvent)),
	}
}

// Register provisions a user account
func (s *SessionService) Register(ctx context.Context, email, password, displayName string) (*UserInfo, error) {
	user, err := identity.NewUser(email, password, displayName)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	info := ToUserInfo(user)
	return &info, nil
}

// SignIn checks the password and issues a token pair
func (s *SessionService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("Failed to look up user during sign-in", zap.Error(err))
		}
		return nil, shared.NewDomainError(shared.CodeUnauthenticated, MsgInvalidCredentials)
	}
	if !user.VerifyPassword(password) {
		s.logger.Warn("Invalid password attempt", zap.String("user_id", user.ID.String()))
		return nil, shared.NewDomainError(shared.CodeUnauthenticated, MsgInvalidCredentials)
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, shared.WrapDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens", err)
	}

	user.RecordLogin(s.now())
	if err := s.users.UpdateLastLogin(ctx, user); err != nil {
		// Sign-in still succeeds
		s.logger.Error("Failed to record last login", zap.Error(err))
	}

	s.logger.Info("User signed in", zap.String("user_id", user.ID.String()))
	s.publish(SessionEvent{Type: EventSignedIn, UserID: user.ID, At: s.now()})
	return newSession(user, pair), nil
}

// SignOut revokes the access token and, when given, the refresh token
func (s *SessionService) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return shared.WrapDomainError(shared.CodeUnauthenticated, "User not authenticated", err)
	}

	if err := s.blacklist.AddToBlacklist(ctx, claims.ID, claims.GetRemainingTTL()); err != nil {
		s.logger.Error("Failed to revoke access token", zap.Error(err))
		return shared.WrapDomainError("INTERNAL_ERROR", "Failed to sign out", err)
	}
	if refreshToken != "" {
		if rc, err := s.tokens.ValidateRefreshToken(refreshToken); err == nil && rc.UserID == claims.UserID {
			if err := s.blacklist.AddToBlacklist(ctx, rc.ID, rc.GetRemainingTTL()); err != nil {
				s.logger.Warn("Failed to revoke refresh token", zap.Error(err))
			}
		}
	}

	userID, _ := claims.GetUserUUID()
	s.logger.Info("User signed out", zap.String("user_id", claims.UserID))
	s.publish(SessionEvent{Type: EventSignedOut, UserID: userID, At: s.now()})
	return nil
}

// CurrentSession resolves a still valid, unrevoked access token
func (s *SessionService) CurrentSession(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeUnauthenticated, "User not authenticated", err)
	}
	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	userID, err := claims.GetUserUUID()
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}

	return &Session{
		User:        ToUserInfo(user),
		AccessToken: accessToken,
		ExpiresAt:   claims.GetExpiresAtTime(),
		TokenType:   "Bearer",
	}, nil
}

// CurrentUser returns the user authenticated on ctx
func (s *SessionService) CurrentUser(ctx context.Context) (*UserInfo, error) {
	userID, ok := identity.PrincipalFromContext(ctx)
	if !ok {
		return nil, shared.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUnauthenticated
		}
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to load user", err)
	}
	info := ToUserInfo(user)
	return &info, nil
}

// Refresh rotates a refresh token: the old one is revoked, a new pair issued
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeUnauthenticated, "Invalid refresh token", err)
	}
	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	userID, err := claims.GetUserUUID()
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}

	pair, _, err := s.tokens.RefreshTokenPair(refreshToken, user.Email)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeUnauthenticated, "Invalid refresh token", err)
	}
	if err := s.blacklist.AddToBlacklist(ctx, claims.ID, claims.GetRemainingTTL()); err != nil {
		s.logger.Warn("Failed to revoke rotated refresh token", zap.Error(err))
	}

	s.publish(SessionEvent{Type: EventTokenRefreshed, UserID: user.ID, At: s.now()})
	return newSession(user, pair), nil
}

// Subscribe registers fn for session changes. The returned func unsubscribes.
func (s *SessionService) Subscribe(fn func(SessionEvent)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// IsRevoked reports whether the token with jti was signed out
func (s *SessionService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.blacklist.IsBlacklisted(ctx, jti)
}

func (s *SessionService) checkRevoked(ctx context.Context, jti string) error {
	revoked, err := s.blacklist.IsBlacklisted(ctx, jti)
	if err != nil {
		// Fail open
		s.logger.Error("Failed to check token blacklist", zap.String("jti", jti), zap.Error(err))
		return nil
	}
	if revoked {
		return shared.NewDomainError(shared.CodeUnauthenticated, "Token has been revoked")
	}
	return nil
}

func (s *SessionService) publish(ev SessionEvent) {
	s.mu.RLock()
	subs := make([]func(SessionEvent), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func newSession(user *identity.User, pair *auth.TokenPair) *Session {
	return &Session{
		User:                  ToUserInfo(user),
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		ExpiresAt:             pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		TokenType:             pair.TokenType,
	}
}
