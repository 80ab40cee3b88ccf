package models

import (
	"encoding/json"
	"strings"
)

const DefaultCategory = "general"

type Donation struct {
	Donor    string `json:"donor"`
	Amount   Amount `json:"amount"`
	Seq      uint64 `json:"seq"`
	At       int64  `json:"at"`
	Refunded bool   `json:"refunded"`
}

type Campaign struct {
	ID              uint64
	Owner           string
	Title           string
	Description     string
	Category        string
	Image           string
	Target          Amount
	MinContribution Amount
	Deadline        int64
	CreatedAt       int64
	AmountCollected Amount
	Withdrawn       Amount
	Refunded        Amount
	State           Lifecycle
	TargetReached   bool
	Donations       []Donation
}

func (c *Campaign) IsActive() bool { return IsOpen(c.State) }

// Clone returns a deep copy safe to hand to readers.
func (c *Campaign) Clone() Campaign {
	out := *c
	out.Donations = make([]Donation, len(c.Donations))
	copy(out.Donations, c.Donations)
	return out
}

// ProgressBps is collected/target in basis points, capped at 10000.
func (c *Campaign) ProgressBps() uint64 {
	if c.Target == 0 {
		return 0
	}
	if c.AmountCollected >= c.Target {
		return 10000
	}
	// collected < target here, so collected*10000 fits unless target > 2^64/10000
	hi := uint64(c.AmountCollected)
	if hi > ^uint64(0)/10000 {
		return hi / (uint64(c.Target) / 10000)
	}
	return hi * 10000 / uint64(c.Target)
}

// NormalizeCategory lower-cases and trims a category label, defaulting blank
// labels to DefaultCategory.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return DefaultCategory
	}
	return c
}

type campaignJSON struct {
	ID              uint64     `json:"id"`
	Owner           string     `json:"owner"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	Image           string     `json:"image,omitempty"`
	Target          Amount     `json:"target"`
	MinContribution Amount     `json:"min_contribution"`
	Deadline        int64      `json:"deadline"`
	CreatedAt       int64      `json:"created_at"`
	AmountCollected Amount     `json:"amount_collected"`
	Withdrawn       Amount     `json:"withdrawn"`
	Refunded        Amount     `json:"refunded"`
	IsActive        bool       `json:"is_active"`
	Closed          *Closed    `json:"closed,omitempty"`
	TargetReached   bool       `json:"target_reached"`
	Donations       []Donation `json:"donations"`
}

func (c Campaign) MarshalJSON() ([]byte, error) {
	w := campaignJSON{
		ID:              c.ID,
		Owner:           c.Owner,
		Title:           c.Title,
		Description:     c.Description,
		Category:        c.Category,
		Image:           c.Image,
		Target:          c.Target,
		MinContribution: c.MinContribution,
		Deadline:        c.Deadline,
		CreatedAt:       c.CreatedAt,
		AmountCollected: c.AmountCollected,
		Withdrawn:       c.Withdrawn,
		Refunded:        c.Refunded,
		IsActive:        c.IsActive(),
		TargetReached:   c.TargetReached,
		Donations:       c.Donations,
	}
	if closed, ok := c.State.(Closed); ok {
		w.Closed = &closed
	}
	if w.Donations == nil {
		w.Donations = []Donation{}
	}
	return json.Marshal(w)
}

func (c *Campaign) UnmarshalJSON(data []byte) error {
	var w campaignJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Campaign{
		ID:              w.ID,
		Owner:           w.Owner,
		Title:           w.Title,
		Description:     w.Description,
		Category:        w.Category,
		Image:           w.Image,
		Target:          w.Target,
		MinContribution: w.MinContribution,
		Deadline:        w.Deadline,
		CreatedAt:       w.CreatedAt,
		AmountCollected: w.AmountCollected,
		Withdrawn:       w.Withdrawn,
		Refunded:        w.Refunded,
		State:           Open{},
		TargetReached:   w.TargetReached,
		Donations:       w.Donations,
	}
	if w.Closed != nil {
		c.State = *w.Closed
	} else if !w.IsActive {
		c.State = Closed{}
	}
	return nil
}

// DonationReceipt is returned to a donor after a successful donation.
type DonationReceipt struct {
	CampaignID      uint64 `json:"campaign_id"`
	Owner           string `json:"owner"`
	Donor           string `json:"donor"`
	Amount          Amount `json:"amount"`
	Seq             uint64 `json:"seq"`
	DonorTotal      Amount `json:"donor_total"`
	AmountCollected Amount `json:"amount_collected"`
	TargetReached   bool   `json:"target_reached"`
}

// Donators mirrors getDonators: parallel slices in arrival order.
type Donators struct {
	Donors  []string `json:"donors"`
	Amounts []Amount `json:"amounts"`
}

type CampaignStats struct {
	CampaignID      uint64 `json:"campaign_id"`
	DonorCount      uint64 `json:"donor_count"`
	AverageDonation Amount `json:"average_donation"`
	TimeLeft        int64  `json:"time_left"`
	IsActive        bool   `json:"is_active"`
	TargetReached   bool   `json:"target_reached"`
	AmountCollected Amount `json:"amount_collected"`
	ProgressBps     uint64 `json:"progress_bps"`
}
