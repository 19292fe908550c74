package ledger

import (
	"fmt"
	"math/big"
)

// FeeSchedule expresses swap fees as fractions of Denominator.
// The total fee is always ProtocolFee + LPFee.
type FeeSchedule struct {
	ProtocolFee uint64 `json:"protocol_fee"`
	LPFee       uint64 `json:"lp_fee"`
	Denominator uint64 `json:"denominator"`
}

// DefaultFeeSchedule is 0.1% to the protocol and 0.2% to LPs.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{ProtocolFee: 1, LPFee: 2, Denominator: 1000}
}

// TotalFee is the full deduction applied to a swap input.
func (f FeeSchedule) TotalFee() uint64 {
	return f.ProtocolFee + f.LPFee
}

// Validate rejects schedules that would divide by zero or consume the whole input.
func (f FeeSchedule) Validate() error {
	if f.Denominator == 0 {
		return fmt.Errorf("%w: denominator is zero", ErrInvalidFeeSchedule)
	}
	if f.TotalFee() >= f.Denominator {
		return fmt.Errorf("%w: total fee %d/%d leaves nothing to trade", ErrInvalidFeeSchedule, f.TotalFee(), f.Denominator)
	}
	return nil
}

// FeeSplit is the decomposition of one swap input.
type FeeSplit struct {
	ProtocolFee    *big.Int
	LPFee          *big.Int
	AmountAfterFee *big.Int
}

// Split computes both fee portions of amountIn and the amount left to price.
func (f FeeSchedule) Split(amountIn *big.Int) FeeSplit {
	den := new(big.Int).SetUint64(f.Denominator)

	protocolFee := new(big.Int).Mul(amountIn, new(big.Int).SetUint64(f.ProtocolFee))
	protocolFee.Quo(protocolFee, den)

	lpFee := new(big.Int).Mul(amountIn, new(big.Int).SetUint64(f.LPFee))
	lpFee.Quo(lpFee, den)

	after := new(big.Int).Sub(amountIn, protocolFee)
	after.Sub(after, lpFee)

	return FeeSplit{ProtocolFee: protocolFee, LPFee: lpFee, AmountAfterFee: after}
}

// Reward returns the claimable part of fees for a holder of lp shares:
//
//	reward_share = lp * LPFee / supply
//	reward       = reward_share * fees / Denominator
func (f FeeSchedule) Reward(lp, supply, fees *big.Int) *big.Int {
	if supply.Sign() == 0 {
		return new(big.Int)
	}
	share := new(big.Int).Mul(lp, new(big.Int).SetUint64(f.LPFee))
	share.Quo(share, supply)

	reward := share.Mul(share, fees)
	return reward.Quo(reward, new(big.Int).SetUint64(f.Denominator))
}

// accrueFees books one swap's fees against the input token.
func (s *State) accrueFees(token string, split FeeSplit) {
	add(s.ProtocolFees, token, split.ProtocolFee)
	add(s.CollectedFees, token, split.LPFee)
	s.TotalFees = new(big.Int).Add(s.TotalFees, split.LPFee)
}
