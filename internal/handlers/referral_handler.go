package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/textcentre/textcentre-backend/internal/dto"
	"github.com/textcentre/textcentre-backend/internal/services"
)

type ReferralHandler struct {
	referrals *services.ReferralService
}

func NewReferralHandler(referrals *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

func (h *ReferralHandler) Code(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	code, err := h.referrals.GetOrAssignCode(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
	return c.JSON(dto.ReferralCodeResponse{Code: code})
}

func (h *ReferralHandler) List(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	entries, err := h.referrals.ListForReferrer(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	resp := dto.ReferralListResponse{Entries: make([]dto.ReferralEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.ReferralEntry{
			ID:          e.ID,
			ReferredID:  e.ReferredID,
			Status:      e.Status,
			RewardGiven: e.RewardGiven,
			CreatedAt:   e.CreatedAt,
		})
	}
	resp.Total = len(resp.Entries)
	return c.JSON(resp)
}
