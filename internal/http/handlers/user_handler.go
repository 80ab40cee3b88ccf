package handlers

import (
	"github.com/crowdfund/backend/internal/http/dto"
	"github.com/crowdfund/backend/internal/middleware"
	"github.com/crowdfund/backend/internal/services"
	"github.com/crowdfund/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserHandler serves the per-identity views. /users/:identity takes any
// address form; /me uses the caller's token.
type UserHandler struct {
	campaigns *services.CampaignService
	log       *zap.Logger
}

func NewUserHandler(campaigns *services.CampaignService, log *zap.Logger) *UserHandler {
	return &UserHandler{campaigns: campaigns, log: log}
}

func (h *UserHandler) Campaigns(c *fiber.Ctx) error {
	identity, ok := h.identity(c)
	if !ok {
		return badRequest(c, "invalid identity")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.campaigns.UserCampaigns(identity)})
}

func (h *UserHandler) Donations(c *fiber.Ctx) error {
	identity, ok := h.identity(c)
	if !ok {
		return badRequest(c, "invalid identity")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.campaigns.UserDonations(identity)})
}

func (h *UserHandler) Transactions(c *fiber.Ctx) error {
	identity, ok := h.identity(c)
	if !ok {
		return badRequest(c, "invalid identity")
	}
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return badRequest(c, "limit must not be negative")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.campaigns.UserTransactions(identity, limit)})
}

func (h *UserHandler) identity(c *fiber.Ctx) (string, bool) {
	if id := middleware.GetIdentity(c); id != "" {
		return id, true
	}
	raw := c.Params("identity")
	if raw == "" {
		return "", false
	}
	id, err := ton.NormalizeIdentity(raw)
	if err != nil {
		return "", false
	}
	return id, true
}
