package handlers

import (
	"github.com/crowdfund/backend/internal/http/dto"
	"github.com/crowdfund/backend/internal/services"
	"github.com/crowdfund/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler runs the TON Connect login: the client fetches a nonce, the
// wallet signs it, and a verified proof is exchanged for a JWT.
type AuthHandler struct {
	wallets *services.WalletService
	log     *zap.Logger
}

func NewAuthHandler(wallets *services.WalletService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{wallets: wallets, log: log}
}

func (h *AuthHandler) ProofPayload(c *fiber.Ctx) error {
	payload, err := h.wallets.GeneratePayload(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.ProofPayloadResponse{Payload: payload})
}

func (h *AuthHandler) WalletLogin(c *fiber.Ctx) error {
	var req ton.ProofData
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Address == "" || req.PublicKey == "" || req.Proof.Payload == "" || req.Proof.Signature == "" {
		return badRequest(c, "address, public_key and proof are required")
	}

	res, err := h.wallets.Login(c.UserContext(), req)
	if err != nil {
		h.log.Debug("wallet login rejected", zap.String("address", req.Address), zap.Error(err))
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}
