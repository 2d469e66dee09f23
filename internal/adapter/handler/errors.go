package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/tappay/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

const codeInternal = "INTERNAL"

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindAccountNotFound, domain.KindNoActiveRequest:
		return http.StatusNotFound
	case domain.KindAlreadyProcessed, domain.KindDuplicateCard, domain.KindDuplicateEmail:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// writeError renders domain failures with their own message and hides
// everything else behind a logged 500.
func writeError(c *fiber.Ctx, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return c.Status(statusFor(derr.Kind)).JSON(fiber.Map{"error": derr.Message, "code": derr.Kind})
	}

	slog.Error("Request failed", "error", err, "path", c.Path(), "request_id", middleware.GetRequestID(c))
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error", "code": codeInternal})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": domain.KindInvalidInput})
}

// ErrorHandler is the fiber.Config error handler: routing errors keep their
// code, anything else goes through writeError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "code": http.StatusText(fe.Code)})
	}
	return writeError(c, err)
}
