package domain

import "time"

// Tier is a jackpot prize band.
type Tier string

const (
	TierJackpot Tier = "jackpot"
	TierMedium  Tier = "medium"
	TierSmall   Tier = "small"
	TierNone    Tier = "none"
)

// JackpotLogEntry records one spin and its payout bookkeeping.
type JackpotLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Address    string    `json:"address"`
	Roll       int64     `json:"roll"`
	Tier       Tier      `json:"tier"`
	Prize      int64     `json:"prize"`
	Paid       bool      `json:"paid"`
	ClaimNonce string    `json:"claimNonce,omitempty"`
	Signature  string    `json:"signature,omitempty"`
	TxHash     string    `json:"txHash,omitempty"`
}

// Won reports whether the spin carries a prize.
func (e JackpotLogEntry) Won() bool {
	return e.Prize > 0
}

// JackpotClaim is what a winner submits to the jackpot contract.
type JackpotClaim struct {
	Address   string `json:"address"`
	Prize     int64  `json:"prize"`
	AmountWei string `json:"amountWei"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}
