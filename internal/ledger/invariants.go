package ledger

import (
	"fmt"
	"math/big"
)

// CheckInvariants verifies that no balance is negative and that the LP
// supply equals the sum of all holdings.
func CheckInvariants(s *State) error {
	for name, m := range map[string]map[string]*big.Int{
		"reserve":        s.Reserves,
		"lp share":       s.LPShares,
		"protocol fee":   s.ProtocolFees,
		"collected fee":  s.CollectedFees,
		"reward pointer": s.RewardCheckpoints,
	} {
		for key, v := range m {
			if v == nil || v.Sign() < 0 {
				return fmt.Errorf("%w: %s %s is %v", ErrInvariantViolated, name, key, v)
			}
		}
	}

	sum := new(big.Int)
	for _, v := range s.LPShares {
		sum.Add(sum, v)
	}
	if s.TotalLPSupply == nil || sum.Cmp(s.TotalLPSupply) != 0 {
		return fmt.Errorf("%w: LP supply %v, holdings sum to %s", ErrInvariantViolated, s.TotalLPSupply, sum)
	}
	if n := len(s.Pair); n != 0 && (n != 2 || s.Pair[0] == s.Pair[1]) {
		return fmt.Errorf("%w: pool pair %v", ErrInvariantViolated, s.Pair)
	}
	if s.TotalFees == nil || s.TotalFees.Sign() < 0 {
		return fmt.Errorf("%w: total fees %v", ErrInvariantViolated, s.TotalFees)
	}
	return nil
}
