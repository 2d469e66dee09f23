package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/tappay/internal/adapter/middleware"
)

type Handlers struct {
	Account     *AccountHandler
	Tap         *TapHandler
	Transaction *TransactionHandler
	Payment     *PaymentHandler
	Health      *HealthHandler
}

// SetupRoutes mounts every endpoint on app. idem backs the Idempotency-Key
// support of the money-moving routes.
func SetupRoutes(app *fiber.App, h Handlers, idem middleware.IdempotencyStore) {
	app.Get("/healthz", h.Health.Health)

	api := app.Group("/v1")

	api.Post("/accounts", h.Account.CreateAccount)
	api.Get("/accounts/:id", h.Account.GetAccount)
	api.Post("/nfc-tap", h.Tap.Tap)

	api.Post("/transfer", middleware.Idempotency(idem), h.Transaction.Transfer)

	payment := api.Group("/payment")
	payment.Post("/request", h.Payment.CreateRequest)
	payment.Get("/check_request", h.Payment.CheckRequest)
	payment.Post("/check_request", h.Payment.CheckRequest)
	payment.Post("/respond", middleware.Idempotency(idem), h.Payment.Respond)
	payment.Get("/status", h.Payment.Status)
}
