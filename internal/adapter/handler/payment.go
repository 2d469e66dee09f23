package handler

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
	"github.com/ibrahimkeyboad/tappay/internal/core/payreq"
)

type PaymentHandler struct {
	Broker *payreq.Broker
}

type PaymentRequestBody struct {
	MerchantAccountID uuid.UUID       `json:"merchant_account_id"`
	CustomerAccountID uuid.UUID       `json:"customer_account_id"`
	Amount            decimal.Decimal `json:"amount"` // dollars
}

type RespondBody struct {
	CustomerAccountID uuid.UUID `json:"customer_account_id"`
	Action            string    `json:"action"`
}

type customerQuery struct {
	CustomerAccountID string `json:"customer_account_id" query:"customer_account_id"`
	MerchantAccountID string `json:"merchant_account_id" query:"merchant_account_id"`
}

// parseCustomer reads customer_account_id from the query string, or from a
// JSON body on POST.
func parseCustomer(c *fiber.Ctx) (customer uuid.UUID, merchant *uuid.UUID, err error) {
	var q customerQuery
	if err := c.QueryParser(&q); err != nil {
		return uuid.Nil, nil, domain.InvalidInput("Invalid query")
	}
	if q.CustomerAccountID == "" && c.Method() == fiber.MethodPost && len(c.Body()) > 0 {
		if err := c.BodyParser(&q); err != nil {
			return uuid.Nil, nil, domain.InvalidInput("Invalid request body")
		}
	}

	customer, err = uuid.Parse(q.CustomerAccountID)
	if err != nil {
		return uuid.Nil, nil, domain.InvalidInput("customer_account_id is required")
	}
	if q.MerchantAccountID != "" {
		id, err := uuid.Parse(q.MerchantAccountID)
		if err != nil {
			return uuid.Nil, nil, domain.InvalidInput("Invalid merchant_account_id")
		}
		merchant = &id
	}
	return customer, merchant, nil
}

// CreateRequest lets a merchant push a charge to a customer.
func (h *PaymentHandler) CreateRequest(c *fiber.Ctx) error {
	var body PaymentRequestBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	req, err := h.Broker.Create(c.Context(), body.MerchantAccountID, body.CustomerAccountID, body.Amount)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"request_id":    req.ID,
		"message":       fmt.Sprintf("Payment request of %s sent to %s", domain.FormatMajor(req.Amount), req.CustomerName),
		"amount":        domain.MajorFloat(req.Amount),
		"customer_name": req.CustomerName,
	})
}

// CheckRequest is the customer's poll for a charge to answer.
func (h *PaymentHandler) CheckRequest(c *fiber.Ctx) error {
	customer, _, err := parseCustomer(c)
	if err != nil {
		return writeError(c, err)
	}

	req, ok := h.Broker.Check(c.Context(), customer)
	if !ok {
		return c.JSON(fiber.Map{"has_pending_request": false})
	}
	return c.JSON(fiber.Map{
		"has_pending_request": req.Status == domain.PaymentPending,
		"request_id":          req.ID,
		"merchant_name":       req.MerchantName,
		"amount":              domain.MajorFloat(req.Amount),
		"status":              req.Status,
		"created_at":          req.CreatedAt,
	})
}

func (h *PaymentHandler) Respond(c *fiber.Ctx) error {
	var body RespondBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	action := domain.PaymentAction(strings.ToLower(strings.TrimSpace(body.Action)))

	resp, err := h.Broker.Respond(c.Context(), body.CustomerAccountID, action)
	if err != nil {
		return writeError(c, err)
	}

	req := resp.Request
	out := fiber.Map{"success": true, "action": action}
	if req.Status == domain.PaymentAccepted {
		out["message"] = fmt.Sprintf("✅ Paid %s to %s", domain.FormatMajor(req.Amount), req.MerchantName)
		out["new_balance"] = domain.MajorFloat(resp.Customer.Balance)
	} else {
		out["message"] = fmt.Sprintf("Payment request from %s declined", req.MerchantName)
	}
	return c.JSON(out)
}

// Status is the merchant's poll for the customer's answer.
func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	customer, merchant, err := parseCustomer(c)
	if err != nil {
		return writeError(c, err)
	}

	req, ok := h.Broker.Status(c.Context(), customer, merchant)
	if !ok {
		return c.JSON(fiber.Map{
			"status":    "none",
			"amount":    0,
			"completed": false,
			"message":   "No payment request found",
		})
	}

	out := fiber.Map{"amount": domain.MajorFloat(req.Amount)}
	switch req.Status {
	case domain.PaymentAccepted:
		out["status"] = "accepted"
		out["completed"] = true
		out["message"] = fmt.Sprintf("✅ %s accepted the payment", req.CustomerName)
	case domain.PaymentDeclined:
		out["status"] = "declined"
		out["completed"] = true
		out["message"] = fmt.Sprintf("%s declined the payment", req.CustomerName)
	default:
		out["status"] = "waiting"
		out["completed"] = false
		out["message"] = fmt.Sprintf("Waiting for %s to respond", req.CustomerName)
	}
	return c.JSON(out)
}
