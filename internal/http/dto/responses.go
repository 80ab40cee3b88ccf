package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type ProofPayloadResponse struct {
	Payload string `json:"payload"`
}

type RefundResponse struct {
	CampaignID uint64 `json:"campaign_id"`
	Amount     uint64 `json:"amount"`
}

// DepositInfoResponse tells a wallet how to donate on-chain.
type DepositInfoResponse struct {
	CampaignID    uint64 `json:"campaign_id"`
	WalletAddress string `json:"wallet_address"`
	Memo          string `json:"memo"`
	MinAmount     uint64 `json:"min_amount"`
	MinAmountTON  string `json:"min_amount_ton"`
}
