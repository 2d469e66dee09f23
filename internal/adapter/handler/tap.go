package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
	"github.com/ibrahimkeyboad/tappay/internal/core/identity"
)

type TapHandler struct {
	Resolver *identity.Resolver
}

type TapRequest struct {
	UID string `json:"uid"`
}

// Tap identifies the account behind a tapped card, provisioning one when
// the resolver is configured to.
func (h *TapHandler) Tap(c *fiber.Ctx) error {
	var req TapRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UID == "" {
		return writeError(c, domain.ErrInvalidCard)
	}

	acc, existing, err := h.Resolver.Resolve(c.Context(), req.UID)
	if err != nil {
		return writeError(c, err)
	}

	message := "Welcome back, " + acc.OwnerName
	if !existing {
		message = "💳 New card registered with a starter balance of " + domain.FormatMajor(acc.Balance)
	}
	return c.JSON(fiber.Map{
		"account_id":    acc.ID,
		"uid":           acc.CardUID,
		"balance":       domain.MajorFloat(acc.Balance),
		"existing_user": existing,
		"message":       message,
	})
}
