package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/textcentre/textcentre-backend/internal/dto"
	"github.com/textcentre/textcentre-backend/internal/services"
)

// currentUserID extracts the authenticated account id from the JWT placed
// in locals by the auth middleware.
func currentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return uuid.Nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, false
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

// denied renders a gated-action denial: an expected outcome with the limit
// and reset date, not a server error.
func denied(c *fiber.Ctx, d services.Decision) error {
	msg := "Free-tier limit reached. Upgrade to premium for unlimited access."
	if d.Reason == services.DenyPremiumRequired {
		msg = "This book requires a premium subscription."
	}
	return c.Status(fiber.StatusForbidden).JSON(dto.DeniedResponse{
		Error:    true,
		Reason:   string(d.Reason),
		Message:  msg,
		Limit:    d.Limit,
		ResetsAt: d.ResetsAt,
	})
}
