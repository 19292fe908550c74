package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names the ledger operation that produced an event.
type EventKind string

const (
	EventDeposit         EventKind = "deposit"
	EventSwap            EventKind = "swap"
	EventAddLiquidity    EventKind = "add_liquidity"
	EventRemoveLiquidity EventKind = "remove_liquidity"
	EventClaimRewards    EventKind = "claim_rewards"
	EventWithdrawFees    EventKind = "withdraw_protocol_fees"
	EventSetPaused       EventKind = "set_paused"
)

// LedgerEvent is the record of one committed operation. Amounts are base-10
// integer strings; fields that do not apply to a kind are left empty. For
// swaps side A is the input and side B the output.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Caller    string    `json:"caller"`

	TokenA  string `json:"token_a,omitempty"`
	AmountA string `json:"amount_a,omitempty"`
	TokenB  string `json:"token_b,omitempty"`
	AmountB string `json:"amount_b,omitempty"`

	ProtocolFee string `json:"protocol_fee,omitempty"`
	LPFee       string `json:"lp_fee,omitempty"`
	Shares      string `json:"shares,omitempty"`

	// Price is AmountB per AmountA; zero for non-swap events.
	Price  decimal.Decimal `json:"price"`
	Paused bool            `json:"paused,omitempty"`
}

// Tokens lists the distinct tokens the event touched.
func (e *LedgerEvent) Tokens() []string {
	var out []string
	for _, t := range []string{e.TokenA, e.TokenB} {
		if t != "" && (len(out) == 0 || out[0] != t) {
			out = append(out, t)
		}
	}
	return out
}
