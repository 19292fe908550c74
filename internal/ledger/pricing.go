package ledger

import (
	"fmt"
	"math/big"
)

// Quote prices amountIn of tokenIn against tokenOut on the constant-product
// curve x*y = k:
//
//	amount_out = y - k / (x + amount_in)
//
// x and y are the reserves of the two distinct tokens. The result is never
// larger than y and is re-derived from current reserves on every call.
func (s *State) Quote(tokenIn, tokenOut string, amountIn *big.Int) (*big.Int, error) {
	x := s.ReserveOf(tokenIn)
	y := s.ReserveOf(tokenOut)
	if x.Sign() == 0 || y.Sign() == 0 {
		return nil, fmt.Errorf("%w: reserves %s=%s %s=%s", ErrInsufficientLiquidity, tokenIn, x, tokenOut, y)
	}

	k := new(big.Int).Mul(x, y)
	newX := x.Add(x, amountIn)
	newY := k.Quo(k, newX)
	return y.Sub(y, newY), nil
}

// QuoteResult is the read-only preview of a swap.
type QuoteResult struct {
	TokenIn        string   `json:"token_in"`
	TokenOut       string   `json:"token_out"`
	AmountIn       *big.Int `json:"amount_in"`
	ProtocolFee    *big.Int `json:"protocol_fee"`
	LPFee          *big.Int `json:"lp_fee"`
	AmountAfterFee *big.Int `json:"amount_after_fee"`
	AmountOut      *big.Int `json:"amount_out"`
	ReserveIn      *big.Int `json:"reserve_in"`
	ReserveOut     *big.Int `json:"reserve_out"`
}

// Quote validates the pair and previews what Swap would pay for amountIn,
// after fees. It does not consult the paused flag.
func (e *Engine) Quote(s *State, tokenIn, tokenOut string, amountIn *big.Int) (*QuoteResult, error) {
	if err := e.checkPool(s, tokenIn, tokenOut); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount_in must be non-negative", ErrInvalidAmount)
	}

	split := e.fees.Split(amountIn)
	out, err := s.Quote(tokenIn, tokenOut, split.AmountAfterFee)
	if err != nil {
		return nil, err
	}

	return &QuoteResult{
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       cloneInt(amountIn),
		ProtocolFee:    split.ProtocolFee,
		LPFee:          split.LPFee,
		AmountAfterFee: split.AmountAfterFee,
		AmountOut:      out,
		ReserveIn:      s.ReserveOf(tokenIn),
		ReserveOut:     s.ReserveOf(tokenOut),
	}, nil
}
