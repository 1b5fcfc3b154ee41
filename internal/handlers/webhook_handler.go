package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/textcentre/textcentre-backend/internal/billing"
	"github.com/textcentre/textcentre-backend/internal/config"
	"github.com/textcentre/textcentre-backend/internal/services"
)

type WebhookHandler struct {
	subscriptions *services.SubscriptionService
	cfg           *config.Config
}

func NewWebhookHandler(subscriptions *services.SubscriptionService, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{subscriptions: subscriptions, cfg: cfg}
}

// HandleStripe verifies the event signature, translates it into a typed
// billing event, and applies it. Events we do not act on are acknowledged
// so the gateway stops retrying them.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	payload := c.Body()
	sig := c.Get("Stripe-Signature")

	event, err := billing.ParseWebhook(payload, sig, h.cfg.StripeWebhookSecret)
	if err != nil {
		slog.Warn("webhook rejected", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid webhook"})
	}
	if event == nil {
		return c.JSON(fiber.Map{"received": true})
	}

	if err := h.subscriptions.HandleEvent(c.Context(), event); err != nil {
		slog.Error("webhook processing failed", "error", err)
		// Non-2xx makes the gateway redeliver; processing is idempotent.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing failed"})
	}
	return c.JSON(fiber.Map{"received": true})
}
