package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/clock"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/models"
	"github.com/nkiryanov/netcraft/internal/service/user"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshtoken"
)

type tokenManager interface {
	GeneratePair(userID uuid.UUID) (models.TokenPair, error)
	ParseAccess(access string) (models.TokenClaims, error)
	ParseRefresh(refresh string) (models.TokenClaims, error)
}

type revocationLedger interface {
	Revoke(ctx context.Context, token models.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type userService interface {
	CreateUser(ctx context.Context, u user.NewUser) (models.User, error)
	Login(ctx context.Context, email string, password string) (models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
}

type Config struct {
	// Header to write and read access token from
	// "Authorization" by default
	AccessHeaderName string

	// Scheme of access token in header
	// "Bearer" by default
	AccessAuthScheme string

	// Cookie to keep refresh token in
	// "refreshtoken" by default
	RefreshCookieName string

	// System clock if not set
	Clock clock.Clock
}

// Auth service
type AuthService struct {
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string

	clock  clock.Clock
	logger logger.Logger

	// Manager to issue and parse token pairs (access and refresh)
	tokenManager tokenManager

	// Revoked tokens can't be used even if they are not expired
	ledger revocationLedger

	users userService
}

func NewService(cfg Config, tokenManager tokenManager, ledger revocationLedger, users userService, l logger.Logger) (*AuthService, error) {
	if cfg.AccessHeaderName == "" {
		cfg.AccessHeaderName = defaultAccessHeaderName
	}
	if cfg.AccessAuthScheme == "" {
		cfg.AccessAuthScheme = defaultAccessAuthScheme
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = defaultRefreshCookieName
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &AuthService{
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		clock:             cfg.Clock,
		logger:            l.With("component", "auth"),
		tokenManager:      tokenManager,
		ledger:            ledger,
		users:             users,
	}, nil
}

// Register user and issue tokens for him
// Has to return apperrors.ErrUserAlreadyExists if email or nickname is taken
func (s *AuthService) Register(ctx context.Context, u user.NewUser) (models.TokenPair, error) {
	created, err := s.users.CreateUser(ctx, u)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.tokenManager.GeneratePair(created.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Login with email and password
// Has to return apperrors.ErrUserNotFound if user not found or password is wrong
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	u, err := s.users.Login(ctx, email, password)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound), errors.Is(err, apperrors.ErrInvalidPassword):
		return models.TokenPair{}, apperrors.ErrUserNotFound
	case err != nil:
		return models.TokenPair{}, err
	}

	pair, err := s.tokenManager.GeneratePair(u.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Exchange refresh token to the new pair
// Used refresh token is revoked, so it can't be used twice. Revoked one gives apperrors.ErrTokenRevoked
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	claims, err := s.tokenManager.ParseRefresh(refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return models.TokenPair{}, err
	}

	// Unique jti makes concurrent refreshes safe: only one of them wins
	err = s.ledger.Revoke(ctx, models.NewRevokedToken(claims, s.clock.Now()))
	switch {
	case errors.Is(err, apperrors.ErrTokenAlreadyRevoked):
		return models.TokenPair{}, apperrors.ErrTokenRevoked
	case err != nil:
		return models.TokenPair{}, err
	}

	if _, err := s.users.GetUser(ctx, claims.UserID); err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.tokenManager.GeneratePair(claims.UserID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Revoke access token of the request and the refresh one if the client sent it
func (s *AuthService) Logout(ctx context.Context, access models.TokenClaims, refresh string) error {
	now := s.clock.Now()

	if err := s.ledger.Revoke(ctx, models.NewRevokedToken(access, now)); err != nil {
		return err
	}

	if refresh == "" {
		return nil
	}

	claims, err := s.tokenManager.ParseRefresh(refresh)
	if err != nil || claims.UserID != access.UserID {
		s.logger.Debug("refresh token ignored on logout", "user_id", access.UserID.String())
		return nil
	}

	err = s.ledger.Revoke(ctx, models.NewRevokedToken(claims, now))
	if err != nil && !errors.Is(err, apperrors.ErrTokenAlreadyRevoked) {
		return err
	}

	return nil
}

// Authenticate request by access token
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, models.TokenClaims, error) {
	header := r.Header.Get(s.accessHeaderName)
	access, ok := strings.CutPrefix(header, s.accessAuthScheme+" ")
	if !ok || access == "" {
		return models.User{}, models.TokenClaims{}, fmt.Errorf("no access token: %w", apperrors.ErrTokenInvalid)
	}

	claims, err := s.tokenManager.ParseAccess(access)
	if err != nil {
		return models.User{}, models.TokenClaims{}, err
	}

	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return models.User{}, models.TokenClaims{}, err
	}

	u, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return models.User{}, models.TokenClaims{}, err
	}

	return u, claims, nil
}

func (s *AuthService) ensureNotRevoked(ctx context.Context, claims models.TokenClaims) error {
	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	switch {
	case err != nil:
		return err
	case revoked:
		return apperrors.ErrTokenRevoked
	default:
		return nil
	}
}

// Set auth tokens: access to header, refresh to http only cookie
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     "/",
		MaxAge:   int(pair.Refresh.ExpiresAt.Sub(s.clock.Now()).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Remove refresh cookie on client
func (s *AuthService) ClearTokenPairFromResponse(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Get refresh token from request cookie
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
