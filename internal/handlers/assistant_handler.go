package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/textcentre/textcentre-backend/internal/dto"
	"github.com/textcentre/textcentre-backend/internal/services"
)

type AssistantHandler struct {
	assistant *services.AssistantService
}

func NewAssistantHandler(assistant *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

func (h *AssistantHandler) Query(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.AssistantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Query is required",
		})
	}

	decision, reply, err := h.assistant.Query(c.Context(), userID, req.Query)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
	if !decision.Allowed {
		return denied(c, decision)
	}
	return c.JSON(dto.AssistantResponse{Reply: reply})
}
