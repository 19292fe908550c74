package ledger

import (
	"fmt"
	"math/big"
)

// ReserveOf returns the pool's tracked balance of token.
func (s *State) ReserveOf(token string) *big.Int {
	return get(s.Reserves, token)
}

// Credit adds amount to the reserve of token. amount must be non-negative.
func (s *State) Credit(token string, amount *big.Int) {
	add(s.Reserves, token, amount)
}

// Debit removes amount from the reserve of token, failing with
// ErrInsufficientReserve when the balance does not cover it.
func (s *State) Debit(token string, amount *big.Int) error {
	if err := s.checkDebit(token, amount); err != nil {
		return err
	}
	s.debit(token, amount)
	return nil
}

func (s *State) checkDebit(token string, amount *big.Int) error {
	bal := s.ReserveOf(token)
	if amount.Cmp(bal) > 0 {
		return fmt.Errorf("%w: %s holds %s, need %s", ErrInsufficientReserve, token, bal, amount)
	}
	return nil
}

// debit assumes checkDebit passed.
func (s *State) debit(token string, amount *big.Int) {
	bal := s.ReserveOf(token)
	s.Reserves[token] = bal.Sub(bal, amount)
}
