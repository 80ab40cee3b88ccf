package handlers

import (
	"errors"

	"github.com/crowdfund/backend/internal/http/dto"
	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/middleware"
	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/services"
	"github.com/crowdfund/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaigns *services.CampaignService
	// depositWallet is the hot wallet the indexer watches; empty disables
	// on-chain deposit instructions.
	depositWallet string
	log           *zap.Logger
}

func NewCampaignHandler(campaigns *services.CampaignService, depositWallet string, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, depositWallet: depositWallet, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	target, err := dto.ResolveAmount(req.Target, req.TargetTON)
	if err != nil {
		return badRequest(c, err.Error())
	}
	minContribution, err := dto.ResolveAmount(req.MinContribution, req.MinContributionTON)
	if err != nil {
		return badRequest(c, err.Error())
	}

	campaign, err := h.campaigns.Create(c.UserContext(), services.UserActor(middleware.GetIdentity(c)), ledger.CreateCampaignInput{
		Title:           req.Title,
		Description:     req.Description,
		Target:          target,
		Deadline:        req.Deadline,
		Image:           req.Image,
		MinContribution: minContribution,
		Category:        req.Category,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.campaigns.List()})
}

func (h *CampaignHandler) ActiveCampaigns(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.campaigns.Active()})
}

func (h *CampaignHandler) CampaignsByCategory(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.campaigns.ByCategory(c.Params("category"))})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	campaign, err := h.campaigns.Get(id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetDonators(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	donators, err := h.campaigns.Donators(id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: donators})
}

func (h *CampaignHandler) GetStats(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	stats, err := h.campaigns.Stats(id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}

func (h *CampaignHandler) GetEvents(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := max(c.QueryInt("offset", 0), 0)

	logs, err := h.campaigns.Events(c.UserContext(), id, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}

// GetDepositInfo returns the wallet and memo for donating on-chain.
func (h *CampaignHandler) GetDepositInfo(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	campaign, err := h.campaigns.Get(id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if h.depositWallet == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error:     "on-chain deposits are not configured",
			RequestID: middleware.GetRequestID(c),
		})
	}
	if !campaign.IsActive() {
		return respondError(c, h.log, ledger.ErrInactive)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DepositInfoResponse{
		CampaignID:    id,
		WalletAddress: h.depositWallet,
		Memo:          ton.DepositMemo(id),
		MinAmount:     uint64(max(campaign.MinContribution, 1)),
		MinAmountTON:  max(campaign.MinContribution, 1).TON(),
	}})
}

func (h *CampaignHandler) Donate(c *fiber.Ctx) error {
	id, amount, err := h.amountRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	receipt, err := h.campaigns.Donate(c.UserContext(), services.UserActor(middleware.GetIdentity(c)), id, amount)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

func (h *CampaignHandler) Withdraw(c *fiber.Ctx) error {
	id, amount, err := h.amountRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.campaigns.Withdraw(c.UserContext(), services.UserActor(middleware.GetIdentity(c)), id, amount); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *CampaignHandler) Refund(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	amount, err := h.campaigns.Refund(c.UserContext(), services.UserActor(middleware.GetIdentity(c)), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.RefundResponse{CampaignID: id, Amount: uint64(amount)}})
}

func (h *CampaignHandler) Close(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}
	if err := h.campaigns.Close(c.UserContext(), services.UserActor(middleware.GetIdentity(c)), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *CampaignHandler) amountRequest(c *fiber.Ctx) (uint64, models.Amount, error) {
	id, err := campaignID(c)
	if err != nil {
		return 0, 0, errors.New("invalid campaign id")
	}
	var req dto.AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return 0, 0, errors.New("invalid request body")
	}
	amount, err := dto.ResolveAmount(req.Amount, req.AmountTON)
	if err != nil {
		return 0, 0, err
	}
	return id, amount, nil
}
