package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
	"github.com/ibrahimkeyboad/tappay/internal/core/identity"
)

type AccountHandler struct {
	Resolver *identity.Resolver
	Store    domain.AccountStore
}

// CreateAccountRequest defines what the user sends us
type CreateAccountRequest struct {
	OwnerName string `json:"owner_name"`
	Email     string `json:"email"`
	CardUID   string `json:"card_uid"`
}

// AccountResponse is an account with its balance in major units.
type AccountResponse struct {
	ID        uuid.UUID            `json:"id"`
	OwnerName string               `json:"owner_name"`
	Email     string               `json:"email,omitempty"`
	CardUID   string               `json:"card_uid,omitempty"`
	Balance   float64              `json:"balance"`
	Currency  domain.Currency      `json:"currency"`
	Status    domain.AccountStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

func newAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        acc.ID,
		OwnerName: acc.OwnerName,
		Email:     acc.Email,
		CardUID:   acc.CardUID,
		Balance:   domain.MajorFloat(acc.Balance),
		Currency:  acc.Currency,
		Status:    acc.Status,
		CreatedAt: acc.CreatedAt,
	}
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid account body", "error", err)
		return badRequest(c, "Invalid request body")
	}

	account, err := h.Resolver.Register(c.Context(), domain.Registration{
		OwnerName: req.OwnerName,
		Email:     req.Email,
		CardUID:   req.CardUID,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(newAccountResponse(account))
}

func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	accountUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid Account ID format")
	}

	account, err := h.Store.GetByID(c.Context(), accountUUID)
	if errors.Is(err, domain.ErrNotFound) {
		return writeError(c, domain.ErrAccountNotFound)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newAccountResponse(account))
}
