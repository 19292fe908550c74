package ledger

import (
	"fmt"
	"math/big"
)

// LPBalance returns the LP shares owned by holder.
func (s *State) LPBalance(holder string) *big.Int {
	return get(s.LPShares, holder)
}

// mint credits holder and the total supply by the same amount. A holder
// entering with no shares starts accruing rewards from the current TotalFees.
func (s *State) mint(holder string, amount *big.Int) {
	if s.LPBalance(holder).Sign() == 0 {
		s.RewardCheckpoints[holder] = cloneInt(s.TotalFees)
	}
	add(s.LPShares, holder, amount)
	s.TotalLPSupply = new(big.Int).Add(s.TotalLPSupply, amount)
}

func (s *State) checkBurn(holder string, amount *big.Int) error {
	bal := s.LPBalance(holder)
	if amount.Cmp(bal) > 0 {
		return fmt.Errorf("%w: %s owns %s, requested %s", ErrInsufficientLPShares, holder, bal, amount)
	}
	return nil
}

// burn assumes checkBurn passed.
func (s *State) burn(holder string, amount *big.Int) {
	bal := s.LPBalance(holder)
	s.LPShares[holder] = bal.Sub(bal, amount)
	s.TotalLPSupply = new(big.Int).Sub(s.TotalLPSupply, amount)
}
