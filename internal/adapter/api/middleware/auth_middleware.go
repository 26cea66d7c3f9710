package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
	"neighborly/pkg/logger"
	"neighborly/pkg/response"
)

// TokenVerifier turns a bearer token into a user id.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	users    repository.UserRepository
}

func NewAuthMiddleware(verifier TokenVerifier, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		users:    users,
	}
}

// Authenticate sets "uid" and "role" on the context. The role comes from the
// stored profile; a user without one yet gets an empty role and can only
// create their profile.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Error(c, errors.Unauthenticated("Authorization header is required", nil))
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return response.Error(c, errors.Unauthenticated("Invalid authorization format", nil))
		}

		uid, role, err := m.Identify(c.Request().Context(), parts[1])
		if err != nil {
			return response.Error(c, err)
		}

		c.Set("uid", uid)
		c.Set("role", role)

		return next(c)
	}
}

// Identify verifies a token and looks up the caller's role.
func (m *AuthMiddleware) Identify(ctx context.Context, token string) (string, string, error) {
	uid, err := m.verifier.VerifyToken(ctx, token)
	if err != nil {
		if errors.IsRetryable(err) {
			return "", "", err
		}
		logger.Debug("Token rejected: %v", err)
		return "", "", errors.Unauthenticated("Invalid or expired token", err)
	}

	user, err := m.users.GetByID(ctx, uid)
	switch {
	case err == nil:
		return uid, user.Role, nil
	case errors.Is(err, errors.CodeNotFound):
		return uid, "", nil
	default:
		return "", "", err
	}
}
