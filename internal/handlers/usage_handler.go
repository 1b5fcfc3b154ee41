package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/textcentre/textcentre-backend/internal/dto"
	"github.com/textcentre/textcentre-backend/internal/services"
)

type UsageHandler struct {
	usage        *services.UsageService
	entitlements *services.EntitlementService
}

func NewUsageHandler(usage *services.UsageService, entitlements *services.EntitlementService) *UsageHandler {
	return &UsageHandler{usage: usage, entitlements: entitlements}
}

// Current reports the month's counters. The rollover check runs first so a
// stale row never shows last month's numbers.
func (h *UsageHandler) Current(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.usage.ResetIfPeriodElapsed(c.Context(), userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
	usage, err := h.usage.Get(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
	premium, err := h.entitlements.IsPremium(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	return c.JSON(dto.UsageResponse{
		BooksRead:      usage.BooksRead,
		BooksLimit:     usage.BooksLimit,
		PreviewsViewed: usage.PreviewsViewed,
		PreviewsLimit:  usage.PreviewsLimit,
		AIQueriesUsed:  usage.AIQueriesUsed,
		AIQueriesLimit: usage.AIQueriesLimit,
		ResetsAt:       services.ResetsAt(usage),
		IsPremium:      premium,
	})
}
