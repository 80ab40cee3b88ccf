package models

// Transaction kinds
const (
	TxKindDonation         = "donation"
	TxKindWithdrawal       = "withdrawal"
	TxKindRefund           = "refund"
	TxKindIncomingDonation = "incoming_donation"
)

// Transaction is one entry of a user's append-only money log. The campaign
// title is a snapshot taken when the entry was written.
type Transaction struct {
	Seq           uint64 `json:"seq"`
	Identity      string `json:"identity"`
	CampaignID    uint64 `json:"campaign_id"`
	CampaignTitle string `json:"campaign_title"`
	Amount        Amount `json:"amount"`
	Timestamp     int64  `json:"timestamp"`
	Kind          string `json:"kind"`
}

func IsValidTxKind(kind string) bool {
	switch kind {
	case TxKindDonation, TxKindWithdrawal, TxKindRefund, TxKindIncomingDonation:
		return true
	}
	return false
}
