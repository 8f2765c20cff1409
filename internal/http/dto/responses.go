package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// PaymentInfoResponse carries everything the funding client needs to
// deploy and fund the escrow contract in one transaction.
type PaymentInfoResponse struct {
	DealID        string `json:"deal_id"`
	EscrowAddress string `json:"escrow_address"`
	AmountNano    int64  `json:"amount_nano"`
	StateInitBOC  string `json:"state_init_boc"` // base64
	State         string `json:"state"`
}

type RetentionCheckResponse struct {
	OK        bool   `json:"ok"`
	Elapsed   bool   `json:"elapsed"`
	Finalized bool   `json:"finalized"`
	Reason    string `json:"reason,omitempty"`
}
