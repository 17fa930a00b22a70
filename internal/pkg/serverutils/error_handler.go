package serverutils

import (
	"errors"

	"medichat-be/internal/pkg/apperror"
	"medichat-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type errorBody struct {
	Detail string `json:"detail"`
}

// ErrorHandlerMiddleware maps domain errors to JSON error bodies. Internal
// details never reach the client; only the taxonomy's detail string does.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.Status >= fiber.StatusInternalServerError {
				log.Error("http", "request failed", map[string]interface{}{
					"path":  ctx.Path(),
					"kind":  string(appErr.Kind),
					"error": appErr.Error(),
				})
			}
			return ctx.Status(appErr.Status).JSON(errorBody{Detail: appErr.Detail})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(errorBody{Detail: fiberErr.Message})
		}

		log.Error("http", "unhandled error", map[string]interface{}{
			"path":  ctx.Path(),
			"error": err.Error(),
		})
		return ctx.Status(fiber.StatusInternalServerError).JSON(errorBody{Detail: "internal server error"})
	}
}
