package ledger

import (
	"fmt"
	"math/big"
)

// SwapRequest is an exact-input swap. SlippageBps is a percentage (0-100) of
// the expected output the caller is willing to give up.
type SwapRequest struct {
	TokenIn      string
	AmountIn     *big.Int
	TokenOut     string
	MinAmountOut *big.Int
	SlippageBps  uint64
}

// SwapResult describes a committed swap. AmountOut is owed to the caller.
type SwapResult struct {
	TokenIn        string   `json:"token_in"`
	TokenOut       string   `json:"token_out"`
	AmountIn       *big.Int `json:"amount_in"`
	AmountAfterFee *big.Int `json:"amount_after_fee"`
	ProtocolFee    *big.Int `json:"protocol_fee"`
	LPFee          *big.Int `json:"lp_fee"`
	MinRate        *big.Int `json:"min_rate"`
	AmountOut      *big.Int `json:"amount_out"`
	ReserveIn      *big.Int `json:"reserve_in"`
	ReserveOut     *big.Int `json:"reserve_out"`
}

// Swap prices req against the current reserves and books it. The full
// AmountIn (fees included) is credited to the input reserve; the output
// reserve is debited by the quoted amount.
func (e *Engine) Swap(s *State, req SwapRequest) (*SwapResult, error) {
	if s.Paused {
		return nil, ErrContractPaused
	}
	if req.SlippageBps > MaxSlippage {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidSlippage, req.SlippageBps, MaxSlippage)
	}
	if err := e.checkPool(s, req.TokenIn, req.TokenOut); err != nil {
		return nil, err
	}
	if err := checkPositive("amount_in", req.AmountIn); err != nil {
		return nil, err
	}
	minOut := new(big.Int)
	if req.MinAmountOut != nil {
		if req.MinAmountOut.Sign() < 0 {
			return nil, fmt.Errorf("%w: min_amount_out must be non-negative", ErrInvalidAmount)
		}
		minOut.Set(req.MinAmountOut)
	}

	split := e.fees.Split(req.AmountIn)

	// Nothing mutates between the slippage and output checks, so one quote
	// serves both.
	rate, err := s.Quote(req.TokenIn, req.TokenOut, split.AmountAfterFee)
	if err != nil {
		return nil, err
	}

	minRate := new(big.Int).Mul(rate, new(big.Int).SetUint64(req.SlippageBps))
	minRate.Quo(minRate, big.NewInt(MaxSlippage))
	minRate.Sub(rate, minRate)
	if minRate.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: min rate %s below requested %s", ErrSlippageExceeded, minRate, minOut)
	}
	if rate.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: %s below requested %s", ErrInsufficientOutput, rate, minOut)
	}
	if err := s.checkDebit(req.TokenOut, rate); err != nil {
		return nil, err
	}

	s.Credit(req.TokenIn, req.AmountIn)
	s.debit(req.TokenOut, rate)
	s.accrueFees(req.TokenIn, split)

	return &SwapResult{
		TokenIn:        req.TokenIn,
		TokenOut:       req.TokenOut,
		AmountIn:       cloneInt(req.AmountIn),
		AmountAfterFee: split.AmountAfterFee,
		ProtocolFee:    split.ProtocolFee,
		LPFee:          split.LPFee,
		MinRate:        minRate,
		AmountOut:      rate,
		ReserveIn:      s.ReserveOf(req.TokenIn),
		ReserveOut:     s.ReserveOf(req.TokenOut),
	}, nil
}
