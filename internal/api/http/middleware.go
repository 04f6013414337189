package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/cityworks/addressing-service/internal/observability"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// errorEnvelope is the uniform error response body.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewErrorHandler converts errors into the taxonomy envelope. Fiber errors
// keep their status; everything else normalizes through the DomainError
// taxonomy.
func NewErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return c.Status(fiberErr.Code).JSON(errorEnvelope{
				Error: errorBody{Code: apperrors.CodeInternal, Message: fiberErr.Message},
			})
		}

		domainErr := apperrors.ToDomainError(err)
		if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("code", domainErr.Code),
				zap.Error(err),
			)
		}
		metrics.RecordError(c.Path(), c.Method(), domainErr.Code)

		return c.Status(domainErr.HTTPStatus).JSON(errorEnvelope{
			Error: errorBody{
				Code:    domainErr.Code,
				Message: domainErr.Message,
				Details: domainErr.Details,
			},
		})
	}
}

// RequestTimeout bounds each request with a deadline carried on the
// user context.
func RequestTimeout(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
