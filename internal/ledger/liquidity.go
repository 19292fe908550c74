package ledger

import (
	"fmt"
	"math/big"
)

// LiquidityResult describes a committed add or remove.
type LiquidityResult struct {
	Provider      string   `json:"provider"`
	TokenA        string   `json:"token_a"`
	TokenB        string   `json:"token_b"`
	AmountA       *big.Int `json:"amount_a"`
	AmountB       *big.Int `json:"amount_b"`
	Shares        *big.Int `json:"shares"`
	TotalLPSupply *big.Int `json:"total_lp_supply"`
}

// AddLiquidity credits both reserves and mints LP shares to caller.
//
// The first deposit into an empty supply mints amountA shares and binds the
// pool pair. Later deposits must use the same pair and mint
// min(amountA*S/Ra, amountB*S/Rb), so a provider never receives more than the
// smaller side justifies.
func (e *Engine) AddLiquidity(s *State, caller, tokenA string, amountA *big.Int, tokenB string, amountB *big.Int) (*LiquidityResult, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	if err := e.checkPool(s, tokenA, tokenB); err != nil {
		return nil, err
	}
	if err := checkPositive("amount_a", amountA); err != nil {
		return nil, err
	}
	if err := checkPositive("amount_b", amountB); err != nil {
		return nil, err
	}

	shares, err := s.sharesFor(tokenA, amountA, tokenB, amountB)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, fmt.Errorf("%w: deposit too small to mint shares", ErrInvalidAmount)
	}

	s.Credit(tokenA, amountA)
	s.Credit(tokenB, amountB)
	s.mint(caller, shares)
	e.bindPair(s, tokenA, tokenB)

	return &LiquidityResult{
		Provider:      caller,
		TokenA:        tokenA,
		TokenB:        tokenB,
		AmountA:       cloneInt(amountA),
		AmountB:       cloneInt(amountB),
		Shares:        shares,
		TotalLPSupply: cloneInt(s.TotalLPSupply),
	}, nil
}

func (s *State) sharesFor(tokenA string, amountA *big.Int, tokenB string, amountB *big.Int) (*big.Int, error) {
	supply := s.TotalLPSupply
	if supply.Sign() == 0 {
		return cloneInt(amountA), nil
	}

	ra, rb := s.ReserveOf(tokenA), s.ReserveOf(tokenB)
	if ra.Sign() == 0 || rb.Sign() == 0 {
		return nil, fmt.Errorf("%w: cannot price shares against %s=%s %s=%s", ErrInsufficientLiquidity, tokenA, ra, tokenB, rb)
	}

	fromA := new(big.Int).Mul(amountA, supply)
	fromA.Quo(fromA, ra)
	fromB := new(big.Int).Mul(amountB, supply)
	fromB.Quo(fromB, rb)

	if fromA.Cmp(fromB) < 0 {
		return fromA, nil
	}
	return fromB, nil
}

// RemoveLiquidity burns lpAmount of caller's shares and debits the matching
// fraction of both reserves. The returned amounts are owed to caller; shares
// are burned before anything is paid out.
func (e *Engine) RemoveLiquidity(s *State, caller, tokenA, tokenB string, lpAmount *big.Int) (*LiquidityResult, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	if err := e.checkPool(s, tokenA, tokenB); err != nil {
		return nil, err
	}
	if err := checkPositive("lp_amount", lpAmount); err != nil {
		return nil, err
	}
	if err := s.checkBurn(caller, lpAmount); err != nil {
		return nil, err
	}

	prec := big.NewInt(Precision)
	share := new(big.Int).Mul(lpAmount, prec)
	share.Quo(share, s.TotalLPSupply)

	amountA := s.ReserveOf(tokenA)
	amountA.Mul(amountA, share).Quo(amountA, prec)
	amountB := s.ReserveOf(tokenB)
	amountB.Mul(amountB, share).Quo(amountB, prec)
	if err := s.checkDebit(tokenA, amountA); err != nil {
		return nil, err
	}
	if err := s.checkDebit(tokenB, amountB); err != nil {
		return nil, err
	}

	s.burn(caller, lpAmount)
	s.debit(tokenA, amountA)
	s.debit(tokenB, amountB)

	return &LiquidityResult{
		Provider:      caller,
		TokenA:        tokenA,
		TokenB:        tokenB,
		AmountA:       amountA,
		AmountB:       amountB,
		Shares:        cloneInt(lpAmount),
		TotalLPSupply: cloneInt(s.TotalLPSupply),
	}, nil
}
