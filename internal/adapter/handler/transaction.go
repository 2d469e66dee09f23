package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
	"github.com/ibrahimkeyboad/tappay/internal/core/transfer"
)

type TransactionHandler struct {
	Engine *transfer.Engine
}

// TransferRequest is a tap at a merchant's terminal. MerchantID is either
// the merchant's account id or email.
type TransferRequest struct {
	UID        string          `json:"uid"`
	MerchantID string          `json:"merchant_id"`
	Amount     decimal.Decimal `json:"amount"` // dollars
}

func merchantRef(v string) domain.AccountRef {
	if id, err := uuid.Parse(v); err == nil {
		return domain.ByID(id)
	}
	return domain.ByEmail(v)
}

// Transfer API
func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.Engine.Transfer(c.Context(), domain.ByCard(req.UID), merchantRef(req.MerchantID), req.Amount)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("✅ %s transferred from %s to %s.",
			domain.FormatMajor(res.Amount), res.Source.OwnerName, res.Dest.OwnerName),
		"customer_balance": domain.MajorFloat(res.Source.Balance),
		"merchant_balance": domain.MajorFloat(res.Dest.Balance),
	})
}
