package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind names the failure class so callers can branch without string
// matching on Detail.
type Kind string

const (
	KindMissingCredential   Kind = "missing_credential"
	KindUnknownSigningKey   Kind = "unknown_signing_key"
	KindInvalidSignature    Kind = "invalid_signature"
	KindInvalidClaims       Kind = "invalid_claims"
	KindSessionNotFound     Kind = "session_not_found"
	KindForbidden           Kind = "forbidden"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindStoreUnavailable    Kind = "store_unavailable"
)

type AppError struct {
	Status int
	Kind   Kind
	Detail string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func MissingCredential(detail string) *AppError {
	return &AppError{Status: fiber.StatusUnauthorized, Kind: KindMissingCredential, Detail: detail}
}

func UnknownSigningKey(kid string) *AppError {
	return &AppError{Status: fiber.StatusUnauthorized, Kind: KindUnknownSigningKey, Detail: "no signing key matches kid " + kid}
}

func InvalidSignature(err error) *AppError {
	return &AppError{Status: fiber.StatusUnauthorized, Kind: KindInvalidSignature, Detail: "token signature verification failed", Err: err}
}

func InvalidClaims(reason string, err error) *AppError {
	return &AppError{Status: fiber.StatusUnauthorized, Kind: KindInvalidClaims, Detail: "invalid token claims: " + reason, Err: err}
}

func SessionNotFound() *AppError {
	return &AppError{Status: fiber.StatusNotFound, Kind: KindSessionNotFound, Detail: "Session not found"}
}

func Forbidden() *AppError {
	return &AppError{Status: fiber.StatusForbidden, Kind: KindForbidden, Detail: "Session does not belong to caller"}
}

func UpstreamUnavailable(detail string, err error) *AppError {
	return &AppError{Status: fiber.StatusBadGateway, Kind: KindUpstreamUnavailable, Detail: detail, Err: err}
}

func UpstreamTimeout(detail string, err error) *AppError {
	return &AppError{Status: fiber.StatusGatewayTimeout, Kind: KindUpstreamUnavailable, Detail: detail, Err: err}
}

func StoreUnavailable(err error) *AppError {
	return &AppError{Status: fiber.StatusInternalServerError, Kind: KindStoreUnavailable, Detail: "persistence layer unavailable", Err: err}
}

// IsKind reports whether err is an *AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
