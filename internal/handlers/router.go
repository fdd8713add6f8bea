package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/netcraft/internal/handlers/middleware"
	"github.com/nkiryanov/netcraft/internal/handlers/render"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/models"
	"github.com/nkiryanov/netcraft/internal/service/user"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	resetService resetService,
	projectService projectService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", handleRegister(authService, logger))
	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /refresh", handleTokenRefresh(authService, logger))
	apiauth.Handle("POST /logout", withAuth(handleLogout(authService, logger)))
	apiauth.Handle("POST /change-password", withAuth(handleChangePassword(userService, logger)))
	apiauth.Handle("POST /forgot-password", handleForgotPassword(resetService, logger))
	apiauth.Handle("POST /verify-reset-otp", handleVerifyResetOTP(resetService, logger))
	apiauth.Handle("POST /reset-password", handleResetPassword(resetService, logger))

	apiusers := http.NewServeMux()
	apiusers.Handle("GET /{$}", withAuth(handleUserMe()))

	apiprojects := http.NewServeMux()
	apiprojects.Handle("GET /my-projects", withAuth(handleListProjects(projectService, logger)))
	apiprojects.Handle("POST /save", withAuth(handleSaveProject(projectService, logger)))
	apiprojects.Handle("GET /{id}", withAuth(handleGetProject(projectService, logger)))
	apiprojects.Handle("DELETE /{id}", withAuth(handleDeleteProject(projectService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/users/", http.StripPrefix("/api/users", apiusers))
	root.Handle("/api/projects/", http.StripPrefix("/api/projects", apiprojects))
	root.Handle("GET /health", handleHealth())

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.RecoverMiddleware(logger),
	)

	return handler
}

func handleHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, map[string]string{"status": "healthy", "message": "API is running"})
	})
}

type authService interface {
	// Register user
	// Has to return apperrors.ErrUserAlreadyExists if email or nickname is taken
	Register(ctx context.Context, u user.NewUser) (models.TokenPair, error)

	// Login user with email and password
	// Has to return apperrors.ErrUserNotFound if user not found or password is wrong
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token was used or revoked: has to return apperrors.ErrTokenRevoked
	// If token can't be parsed or expired: has to return apperrors.ErrTokenInvalid
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Revoke access token and refresh one if it is given
	Logout(ctx context.Context, access models.TokenClaims, refresh string) error

	// Set auth tokens (access, refresh) to response or remove them
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)
	ClearTokenPairFromResponse(w http.ResponseWriter)

	// Get refresh token from request
	GetRefreshString(r *http.Request) (string, error)

	// Get request and return user if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.User, models.TokenClaims, error)
}

type userService interface {
	// Has to return apperrors.ErrInvalidPassword if current password is wrong
	ChangePassword(ctx context.Context, userID uuid.UUID, current string, newPassword string) error
}

type resetService interface {
	RequestReset(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email string, code string) (time.Duration, error)
	ResetPassword(ctx context.Context, email string, code string, newPassword string) error
}

type projectService interface {
	Save(ctx context.Context, ownerID uuid.UUID, name string, data map[string]any) (models.Project, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error)
	Get(ctx context.Context, ownerID uuid.UUID, projectID uuid.UUID) (models.Project, error)
	Delete(ctx context.Context, ownerID uuid.UUID, projectID uuid.UUID) error
}
