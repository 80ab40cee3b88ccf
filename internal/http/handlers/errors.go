package handlers

import (
	"errors"
	"strconv"

	"github.com/crowdfund/backend/internal/http/dto"
	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/middleware"
	"github.com/crowdfund/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidParameters), errors.Is(err, ledger.ErrBelowMinimum):
		return fiber.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, ledger.ErrInactive),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrNotEligible),
		errors.Is(err, ledger.ErrNothingToRefund),
		errors.Is(err, ledger.ErrAlreadyClosed):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrArithmeticOverflow):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidProof):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

// respondError writes the error envelope. Internal errors are logged and
// their text is not exposed.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := statusFor(err)
	resp := dto.ErrorResponse{
		Error:     err.Error(),
		Code:      ledger.Code(err),
		RequestID: middleware.GetRequestID(c),
	}
	switch status {
	case fiber.StatusInternalServerError:
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		resp.Error = "internal server error"
	case fiber.StatusUnauthorized:
		resp.Code = "invalid_proof"
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     msg,
		Code:      ledger.Code(ledger.ErrInvalidParameters),
		RequestID: middleware.GetRequestID(c),
	})
}

func campaignID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}
