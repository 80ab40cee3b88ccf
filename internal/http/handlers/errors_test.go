package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/crowdfund/backend/internal/events"
	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrInvalidParameters, fiber.StatusBadRequest},
		{fmt.Errorf("%w: 5 < 10", ledger.ErrBelowMinimum), fiber.StatusBadRequest},
		{ledger.ErrNotFound, fiber.StatusNotFound},
		{ledger.ErrUnauthorized, fiber.StatusForbidden},
		{ledger.ErrInactive, fiber.StatusConflict},
		{ledger.ErrInsufficientFunds, fiber.StatusConflict},
		{ledger.ErrNotEligible, fiber.StatusConflict},
		{ledger.ErrNothingToRefund, fiber.StatusConflict},
		{ledger.ErrAlreadyClosed, fiber.StatusConflict},
		{ledger.ErrArithmeticOverflow, fiber.StatusUnprocessableEntity},
		{fmt.Errorf("%w: bad signature", services.ErrInvalidProof), fiber.StatusUnauthorized},
		{errors.New("connection reset"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestInvolves(t *testing.T) {
	donation := events.Event{Type: events.EventDonationReceived, Payload: map[string]any{"owner": "0:aa", "donor": "0:bb", "campaign_id": float64(1)}}
	created := events.Event{Type: events.EventCampaignCreated, Payload: map[string]any{"owner": "0:aa"}}

	tests := []struct {
		name     string
		event    events.Event
		identity string
		want     bool
	}{
		{"donor matches", donation, "0:bb", true},
		{"owner sees donation", donation, "0:aa", true},
		{"other identity", donation, "0:cc", false},
		{"owner matches", created, "0:aa", true},
		{"anonymous", created, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := involves(tt.event, tt.identity); got != tt.want {
				t.Errorf("involves = %v, want %v", got, tt.want)
			}
		})
	}
}
