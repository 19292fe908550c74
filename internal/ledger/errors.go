package ledger

import "errors"

// Precondition failures. Every operation returns one of these (possibly
// wrapped with detail) before it mutates the state.
var (
	ErrInvalidToken          = errors.New("invalid token identifier")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrContractPaused        = errors.New("contract is paused")
	ErrInvalidSlippage       = errors.New("invalid slippage rate")
	ErrSlippageExceeded      = errors.New("slippage too high")
	ErrInsufficientOutput    = errors.New("insufficient output amount")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientReserve   = errors.New("insufficient reserve")
	ErrInsufficientLPShares  = errors.New("insufficient LP shares")
	ErrNoRewardsOrShares     = errors.New("no rewards or LP shares")
	ErrNoFeesToWithdraw      = errors.New("no fees to withdraw")
	ErrUnauthorized          = errors.New("unauthorized")
)

var (
	ErrInvalidFeeSchedule = errors.New("invalid fee schedule")
	ErrInvariantViolated  = errors.New("ledger invariant violated")
)
