package model

// Outcome statuses.
const (
	OutcomeSubmitted             = "submitted"
	OutcomeAbandoned             = "abandoned"
	OutcomeInsufficientAllowance = "insufficient_allowance"
	OutcomeFailed                = "failed"
)

// Outcome records what happened to one borrower in one pass.
type Outcome struct {
	User            string    `json:"user"`
	Direction       Direction `json:"direction"`
	CollateralAsset string    `json:"collateral_asset"`
	DebtAsset       string    `json:"debt_asset"`
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	Amounts         []string  `json:"amounts"`
	UseFlashloan    bool      `json:"use_flashloan"`
	TxHash          string    `json:"tx_hash,omitempty"`
	Error           string    `json:"error,omitempty"`
	RecordedAt      string    `json:"recorded_at"`
}
