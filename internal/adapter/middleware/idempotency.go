package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderIdempotencyHit = "X-Idempotency-Hit"

	codeRequestInProgress = "REQUEST_IN_PROGRESS"
)

// IdempotencyStore keeps one response per key. Reserve claims a key before
// the handler runs; a reserved key reads back as found with status 0 until
// Save records the real response or Release gives the key up.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Lookup(ctx context.Context, key string) (status int, body []byte, found bool, err error)
	Save(ctx context.Context, key string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

// Idempotency lets exactly one request per Idempotency-Key reach the handler.
// Repeats replay the stored response, or get a 409 while the first request is
// still running. Responses of 500 and above are not kept, so a request that
// failed on our side can be retried with the same key.
func Idempotency(store IdempotencyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderIdempotencyKey)
		if key == "" {
			return c.Next()
		}
		// Keys are scoped to the route so one key cannot replay another endpoint.
		scoped := c.Method() + " " + c.Path() + " " + key

		reserved, err := store.Reserve(c.Context(), scoped)
		if err != nil {
			slog.Error("❌ Failed to reserve Idempotency Key", "error", err, "key", key)
			return fiber.NewError(fiber.StatusServiceUnavailable, "Idempotency store unavailable")
		}
		if !reserved {
			return replay(c, store, scoped, key)
		}

		if err := c.Next(); err != nil {
			release(c, store, scoped, key)
			return err
		}

		resStatus := c.Response().StatusCode()
		if resStatus >= fiber.StatusInternalServerError {
			release(c, store, scoped, key)
			return nil
		}
		// fasthttp reuses the body buffer once the request is done.
		resBody := append([]byte(nil), c.Response().Body()...)

		if err := store.Save(c.Context(), scoped, resStatus, resBody); err != nil {
			slog.Error("❌ Failed to save Idempotency Key", "error", err, "key", key)
			release(c, store, scoped, key)
		} else {
			slog.Info("💾 Idempotency Key Saved", "key", key)
		}
		return nil
	}
}

func replay(c *fiber.Ctx, store IdempotencyStore, scoped, key string) error {
	status, body, found, err := store.Lookup(c.Context(), scoped)
	if err != nil {
		slog.Error("❌ Failed to read Idempotency Key", "error", err, "key", key)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Idempotency store unavailable")
	}
	if !found || status == 0 {
		slog.Warn("⏳ Idempotency Key still in progress", "key", key)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A request with this Idempotency-Key is still in progress",
			"code":  codeRequestInProgress,
		})
	}

	slog.Info("🛑 Idempotency Hit! Returning cached response", "key", key)
	c.Set(HeaderIdempotencyHit, "true")
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(status).Send(body)
}

func release(c *fiber.Ctx, store IdempotencyStore, scoped, key string) {
	if err := store.Release(c.Context(), scoped); err != nil {
		slog.Error("❌ Failed to release Idempotency Key", "error", err, "key", key)
	}
}
