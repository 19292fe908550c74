// Package ledger is the pricing, balance-accounting and fee-distribution core
// of a constant-product AMM. It performs no I/O: every operation takes the
// *State it works on, validates all preconditions, and only then mutates it.
// A failed operation leaves the state untouched.
package ledger

import (
	"fmt"
	"math/big"
)

const (
	// Precision scales the pool share used when removing liquidity.
	Precision = 1_000_000

	// MaxSlippage is the largest accepted slippage, in percent of the expected output.
	MaxSlippage = 100
)

// Engine holds the immutable parameters shared by all operations.
type Engine struct {
	fees        FeeSchedule
	rewardToken string
	validToken  func(string) bool
	pair        [2]string
}

type Option func(*Engine)

// WithFeeSchedule overrides DefaultFeeSchedule.
func WithFeeSchedule(f FeeSchedule) Option {
	return func(e *Engine) { e.fees = f }
}

// WithRewardToken sets the token LP rewards are paid in (NativeToken by default).
func WithRewardToken(token string) Option {
	return func(e *Engine) { e.rewardToken = token }
}

// WithPair restricts the ledger to the pool of a and b. Without it the pool
// pair is taken from the first AddLiquidity and recorded in the state.
func WithPair(a, b string) Option {
	return func(e *Engine) { e.pair = [2]string{a, b} }
}

// WithTokenValidator replaces ValidTokenID.
func WithTokenValidator(fn func(string) bool) Option {
	return func(e *Engine) { e.validToken = fn }
}

// NewEngine builds an Engine and validates its parameters.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		fees:        DefaultFeeSchedule(),
		rewardToken: NativeToken,
		validToken:  ValidTokenID,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.fees.Validate(); err != nil {
		return nil, err
	}
	if e.validToken == nil {
		return nil, fmt.Errorf("token validator is nil")
	}
	if !e.validToken(e.rewardToken) {
		return nil, fmt.Errorf("%w: reward token %q", ErrInvalidToken, e.rewardToken)
	}
	if e.pair != [2]string{} {
		if err := e.checkPair(e.pair[0], e.pair[1]); err != nil {
			return nil, fmt.Errorf("pool pair: %w", err)
		}
	}
	return e, nil
}

// Fees returns the fee schedule applied to every swap.
func (e *Engine) Fees() FeeSchedule { return e.fees }

// RewardToken returns the token LP rewards are paid in.
func (e *Engine) RewardToken() string { return e.rewardToken }

// Pair returns the pool pair s trades in, and false while no pair is bound.
func (e *Engine) Pair(s *State) (string, string, bool) {
	if e.pair != [2]string{} {
		return e.pair[0], e.pair[1], true
	}
	if len(s.Pair) == 2 {
		return s.Pair[0], s.Pair[1], true
	}
	return "", "", false
}

// CheckBinding fails when s was bound to a different pool pair than the one
// the engine is configured for.
func (e *Engine) CheckBinding(s *State) error {
	if e.pair == [2]string{} || len(s.Pair) == 0 {
		return nil
	}
	if !samePair(e.pair[0], e.pair[1], s.Pair[0], s.Pair[1]) {
		return fmt.Errorf("%w: ledger trades %s/%s, engine is configured for %s/%s",
			ErrInvalidToken, s.Pair[0], s.Pair[1], e.pair[0], e.pair[1])
	}
	return nil
}

func (e *Engine) checkToken(id string) error {
	if !e.validToken(id) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, id)
	}
	return nil
}

func (e *Engine) checkPair(a, b string) error {
	if err := e.checkToken(a); err != nil {
		return err
	}
	if err := e.checkToken(b); err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("%w: %q appears on both sides", ErrInvalidToken, a)
	}
	return nil
}

// checkPool is checkPair plus membership in the bound pool pair. LP supply is
// ledger-wide, so shares must only ever be priced against one pair.
func (e *Engine) checkPool(s *State, a, b string) error {
	if err := e.checkPair(a, b); err != nil {
		return err
	}
	x, y, ok := e.Pair(s)
	if !ok || samePair(a, b, x, y) {
		return nil
	}
	return fmt.Errorf("%w: pool trades %s/%s, not %s/%s", ErrInvalidToken, x, y, a, b)
}

// checkPoolToken accepts any valid token until a pair is bound.
func (e *Engine) checkPoolToken(s *State, token string) error {
	if err := e.checkToken(token); err != nil {
		return err
	}
	x, y, ok := e.Pair(s)
	if !ok || token == x || token == y {
		return nil
	}
	return fmt.Errorf("%w: pool trades %s/%s, not %s", ErrInvalidToken, x, y, token)
}

// bindPair records the pool pair on the first liquidity deposit.
func (e *Engine) bindPair(s *State, a, b string) {
	if len(s.Pair) == 0 {
		x, y, ok := e.Pair(s)
		if !ok {
			x, y = a, b
		}
		s.Pair = []string{x, y}
	}
}

func samePair(a, b, x, y string) bool {
	return (a == x && b == y) || (a == y && b == x)
}

func checkCaller(caller string) error {
	if caller == "" {
		return fmt.Errorf("%w: missing caller", ErrUnauthorized)
	}
	return nil
}

func checkPositive(name string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, name)
	}
	return nil
}
