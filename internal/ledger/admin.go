package ledger

import (
	"fmt"
	"math/big"
)

// Deposit credits amount of token to the reserves without minting shares.
// Once a pool pair is bound only its two tokens are accepted. It returns the
// reserve after the credit.
func (e *Engine) Deposit(s *State, token string, amount *big.Int) (*big.Int, error) {
	if err := e.checkPoolToken(s, token); err != nil {
		return nil, err
	}
	if err := checkPositive("amount", amount); err != nil {
		return nil, err
	}
	s.Credit(token, amount)
	return s.ReserveOf(token), nil
}

// RewardResult is a committed LP reward payout.
type RewardResult struct {
	Holder string   `json:"holder"`
	Token  string   `json:"token"`
	Amount *big.Int `json:"amount"`
}

// ClaimRewards pays caller its share of the LP fees accrued since its last
// claim, in the engine's reward token. The payout leaves both the collected
// fee pool and the reserve of that token, and resets caller's pending reward.
func (e *Engine) ClaimRewards(s *State, caller string) (*RewardResult, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	lp := s.LPBalance(caller)
	if lp.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s owns no LP shares", ErrNoRewardsOrShares, caller)
	}

	pending := new(big.Int).Sub(s.TotalFees, get(s.RewardCheckpoints, caller))
	if pending.Sign() < 0 {
		pending.SetInt64(0)
	}
	reward := e.fees.Reward(lp, s.TotalLPSupply, pending)
	if reward.Sign() == 0 {
		return nil, fmt.Errorf("%w: nothing accrued for %s", ErrNoRewardsOrShares, caller)
	}

	token := e.rewardToken
	if pool := s.CollectedFeesOf(token); reward.Cmp(pool) > 0 {
		return nil, fmt.Errorf("%w: fee pool %s holds %s, reward is %s", ErrInsufficientReserve, token, pool, reward)
	}
	if err := s.checkDebit(token, reward); err != nil {
		return nil, err
	}

	pool := s.CollectedFeesOf(token)
	s.CollectedFees[token] = pool.Sub(pool, reward)
	s.debit(token, reward)
	s.RewardCheckpoints[caller] = cloneInt(s.TotalFees)

	return &RewardResult{Holder: caller, Token: token, Amount: reward}, nil
}

// WithdrawProtocolFees clears the protocol accrual of token and returns it.
// Only the admin may withdraw; the amount also leaves the (gross) reserve.
func (e *Engine) WithdrawProtocolFees(s *State, caller, token string) (*big.Int, error) {
	if err := e.requireAdmin(s, caller); err != nil {
		return nil, err
	}
	if err := e.checkToken(token); err != nil {
		return nil, err
	}

	fees := s.ProtocolFeesOf(token)
	if fees.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFeesToWithdraw, token)
	}
	if err := s.checkDebit(token, fees); err != nil {
		return nil, err
	}

	s.ProtocolFees[token] = new(big.Int)
	s.debit(token, fees)
	return fees, nil
}

// SetPaused toggles the swap gate. Only the admin may call it.
func (e *Engine) SetPaused(s *State, caller string, paused bool) error {
	if err := e.requireAdmin(s, caller); err != nil {
		return err
	}
	s.Paused = paused
	return nil
}

// IsAdmin reports whether caller administers s.
func IsAdmin(s *State, caller string) bool {
	return caller != "" && caller == s.Admin
}

func (e *Engine) requireAdmin(s *State, caller string) error {
	if !IsAdmin(s, caller) {
		return fmt.Errorf("%w: %q is not the admin", ErrUnauthorized, caller)
	}
	return nil
}
