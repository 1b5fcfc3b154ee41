package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/textcentre/textcentre-backend/internal/billing"
	"github.com/textcentre/textcentre-backend/internal/catalog"
	"github.com/textcentre/textcentre-backend/internal/dto"
	"github.com/textcentre/textcentre-backend/internal/services"
)

type BillingHandler struct {
	subscriptions *services.SubscriptionService
	plans         *catalog.Registry
}

func NewBillingHandler(subscriptions *services.SubscriptionService, plans *catalog.Registry) *BillingHandler {
	return &BillingHandler{subscriptions: subscriptions, plans: plans}
}

func (h *BillingHandler) Checkout(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	var (
		url string
		err error
	)
	switch {
	case req.PlanID != "":
		url, err = h.subscriptions.CheckoutPlan(c.Context(), userID, req.PlanID)
	case req.BookID != "":
		var bookID uuid.UUID
		bookID, err = uuid.Parse(req.BookID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid book id",
			})
		}
		url, err = h.subscriptions.CheckoutBook(c.Context(), userID, bookID)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Either plan_id or book_id is required",
		})
	}

	if err != nil {
		switch {
		case errors.Is(err, services.ErrPlanNotFound), errors.Is(err, services.ErrBookNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrSubscriptionExists):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, billing.ErrGatewayUnavailable):
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: true, Message: "Payment provider unavailable, please retry",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
	}

	return c.JSON(dto.CheckoutResponse{URL: url})
}

func (h *BillingHandler) Portal(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	url, err := h.subscriptions.PortalURL(c.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoBillingAccount):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, billing.ErrGatewayUnavailable):
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: true, Message: "Payment provider unavailable, please retry",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
	}
	return c.JSON(dto.CheckoutResponse{URL: url})
}

func (h *BillingHandler) Cancel(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.CancelSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if err := h.subscriptions.Cancel(c.Context(), userID, req.Immediate); err != nil {
		switch {
		case errors.Is(err, services.ErrSubscriptionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, billing.ErrGatewayUnavailable):
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: true, Message: "Payment provider unavailable, please retry",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
	}
	return c.JSON(fiber.Map{"message": "cancellation requested"})
}

func (h *BillingHandler) Reactivate(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.subscriptions.Reactivate(c.Context(), userID); err != nil {
		switch {
		case errors.Is(err, services.ErrSubscriptionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrNotCancelling):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, billing.ErrGatewayUnavailable):
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: true, Message: "Payment provider unavailable, please retry",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
	}
	return c.JSON(fiber.Map{"message": "subscription reactivated"})
}

func (h *BillingHandler) CurrentSubscription(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	sub, err := h.subscriptions.Current(c.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	return c.JSON(dto.SubscriptionResponse{
		PlanID:             sub.PlanID,
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		TrialEnd:           sub.TrialEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	})
}

func (h *BillingHandler) Plans(c *fiber.Ctx) error {
	all := h.plans.All()
	resp := make([]dto.PlanResponse, 0, len(all))
	for _, p := range all {
		resp = append(resp, dto.PlanResponse{
			ID:        p.ID,
			Name:      p.Name,
			Interval:  p.Interval,
			TrialDays: p.TrialDays,
		})
	}
	return c.JSON(fiber.Map{"plans": resp})
}
