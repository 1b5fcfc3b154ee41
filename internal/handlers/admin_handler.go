package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/textcentre/textcentre-backend/internal/dto"
	"github.com/textcentre/textcentre-backend/internal/models"
	"github.com/textcentre/textcentre-backend/internal/services"
)

type AdminHandler struct {
	db           *gorm.DB
	entitlements *services.EntitlementService
}

func NewAdminHandler(db *gorm.DB, entitlements *services.EntitlementService) *AdminHandler {
	return &AdminHandler{db: db, entitlements: entitlements}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var users []models.User
	var total int64
	if err := h.db.WithContext(c.Context()).Model(&models.User{}).Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
	if err := h.db.WithContext(c.Context()).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, dto.UserFromModel(&users[i]))
	}
	return c.JSON(fiber.Map{"users": resp, "total": total})
}

// GrantPremium extends an account's premium window by the requested number
// of days without touching its billing state.
func (h *AdminHandler) GrantPremium(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid user id",
		})
	}

	var req struct {
		Days int `json:"days"`
	}
	if err := c.BodyParser(&req); err != nil || req.Days <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "days must be a positive integer",
		})
	}

	if err := h.entitlements.GrantPremium(c.Context(), userID, req.Days); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
	return c.JSON(fiber.Map{"message": "premium granted", "days": req.Days})
}
