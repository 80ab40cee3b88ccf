package dto

import (
	"fmt"

	"github.com/crowdfund/backend/internal/models"
)

// Amounts are accepted either in base units or as a decimal TON string; the
// base-unit field wins when both are set.

type CreateCampaignRequest struct {
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Category           string        `json:"category"`
	Image              string        `json:"image,omitempty"`
	Target             models.Amount `json:"target,omitempty"`
	TargetTON          string        `json:"target_ton,omitempty"`
	MinContribution    models.Amount `json:"min_contribution,omitempty"`
	MinContributionTON string        `json:"min_contribution_ton,omitempty"`
	Deadline           int64         `json:"deadline"`
}

type AmountRequest struct {
	Amount    models.Amount `json:"amount,omitempty"`
	AmountTON string        `json:"amount_ton,omitempty"`
}

// ResolveAmount picks the base-unit value or parses the TON string.
func ResolveAmount(base models.Amount, ton string) (models.Amount, error) {
	if base != 0 || ton == "" {
		return base, nil
	}
	a, err := models.ParseTON(ton)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %w", err)
	}
	return a, nil
}
