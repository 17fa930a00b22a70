package serverutils

import (
	"context"
	"strings"

	"medichat-be/internal/pkg/apperror"
	"medichat-be/pkg/auth/cognito"

	"github.com/gofiber/fiber/v2"
)

// TokenVerifier lets tests stub the Cognito verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*cognito.Identity, error)
}

const identityLocal = "identity"

// AuthMiddleware extracts the bearer token, verifies it and stores the
// resulting identity in the request locals.
func AuthMiddleware(verifier TokenVerifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if authHeader == "" {
			return apperror.MissingCredential("Missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return apperror.MissingCredential("Authorization header must be 'Bearer <token>'")
		}

		identity, err := verifier.Verify(ctx.Context(), parts[1])
		if err != nil {
			return err
		}

		ctx.Locals(identityLocal, identity)
		return ctx.Next()
	}
}

// IdentityFromCtx returns the identity stored by AuthMiddleware.
func IdentityFromCtx(ctx *fiber.Ctx) *cognito.Identity {
	identity, _ := ctx.Locals(identityLocal).(*cognito.Identity)
	return identity
}
