package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"

	"github.com/textcentre/textcentre-backend/internal/config"
	"github.com/textcentre/textcentre-backend/internal/handlers"
	"github.com/textcentre/textcentre-backend/internal/middleware"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Health       *handlers.HealthHandler
	Webhook      *handlers.WebhookHandler
	Billing      *handlers.BillingHandler
	Book         *handlers.BookHandler
	Assistant    *handlers.AssistantHandler
	Referral     *handlers.ReferralHandler
	Usage        *handlers.UsageHandler
	Notification *handlers.NotificationHandler
	Admin        *handlers.AdminHandler
}

func Setup(app *fiber.App, cfg *config.Config, db *gorm.DB, h Handlers) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Auth — public, with a stricter rate limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)

	protected := middleware.JWTProtected(cfg)

	api.Post("/auth/logout", protected, h.Auth.Logout)
	api.Get("/auth/profile", protected, h.Auth.Profile)
	api.Put("/auth/profile", protected, h.Auth.UpdateProfile)

	// Catalog browsing is public; opening and previewing are gated per account.
	api.Get("/books", h.Book.List)
	api.Get("/books/library", protected, h.Book.Library)
	api.Get("/books/:id", h.Book.Get)
	api.Post("/books/:id/open", protected, h.Book.Open)
	api.Post("/books/:id/preview", protected, h.Book.Preview)
	api.Put("/books/:id/progress", protected, h.Book.UpdateProgress)

	api.Post("/assistant/query", protected, h.Assistant.Query)

	api.Get("/usage", protected, h.Usage.Current)
	api.Get("/plans", h.Billing.Plans)
	api.Get("/subscription", protected, h.Billing.CurrentSubscription)
	api.Post("/subscription/cancel", protected, h.Billing.Cancel)
	api.Post("/subscription/reactivate", protected, h.Billing.Reactivate)
	api.Post("/billing/checkout", protected, h.Billing.Checkout)
	api.Post("/billing/portal", protected, h.Billing.Portal)

	api.Get("/referrals", protected, h.Referral.List)
	api.Get("/referrals/code", protected, h.Referral.Code)

	api.Get("/notifications", protected, h.Notification.List)
	api.Put("/notifications/:id/read", protected, h.Notification.MarkRead)

	// Webhooks — signature-verified, no JWT
	api.Post("/webhooks/stripe", h.Webhook.HandleStripe)

	// Admin panel (protected + admin required)
	admin := api.Group("/admin", protected, middleware.AdminRequired(db, cfg))
	admin.Get("/users", h.Admin.ListUsers)
	admin.Post("/users/:id/premium", h.Admin.GrantPremium)
}
