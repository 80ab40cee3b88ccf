package events

import (
	"context"
	"strconv"
)

// Streams
const (
	StreamLedger   = "events:ledger"
	StreamDeposits = "events:deposits"
)

// Event types
const (
	EventCampaignCreated  = "campaign_created"
	EventDonationReceived = "donation_received"
	EventFundsWithdrawn   = "funds_withdrawn"
	EventDonationRefunded = "donation_refunded"
	EventCampaignClosed   = "campaign_closed"
	EventDepositDetected  = "deposit_detected"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// Uint64 reads a numeric payload field. JSON decoding yields float64, so
// large values are carried as decimal strings.
func (e Event) Uint64(key string) (uint64, bool) {
	switch v := e.Payload[key].(type) {
	case uint64:
		return v, true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func (e Event) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}
