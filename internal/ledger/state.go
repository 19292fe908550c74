package ledger

import "math/big"

// State is the complete ledger: reserves, LP positions and fee accruals.
// Engine operations receive it explicitly; the caller owns persistence.
type State struct {
	Admin  string `json:"admin"`
	Paused bool   `json:"paused"`

	// Pair is the pool pair, bound on the first AddLiquidity.
	Pair []string `json:"pair,omitempty"`

	Reserves      map[string]*big.Int `json:"reserves"`
	LPShares      map[string]*big.Int `json:"lp_shares"`
	TotalLPSupply *big.Int            `json:"total_lp_supply"`

	ProtocolFees  map[string]*big.Int `json:"protocol_fees"`
	CollectedFees map[string]*big.Int `json:"collected_fees"`
	TotalFees     *big.Int            `json:"total_fees"`

	// TotalFees observed at each holder's last claim (or first mint).
	RewardCheckpoints map[string]*big.Int `json:"reward_checkpoints"`
}

// NewState returns an empty, unpaused ledger administered by admin.
func NewState(admin string) *State {
	s := &State{Admin: admin}
	s.Normalize()
	return s
}

// Normalize fills in nil maps and totals, e.g. after decoding a snapshot.
func (s *State) Normalize() {
	if s.Reserves == nil {
		s.Reserves = map[string]*big.Int{}
	}
	if s.LPShares == nil {
		s.LPShares = map[string]*big.Int{}
	}
	if s.ProtocolFees == nil {
		s.ProtocolFees = map[string]*big.Int{}
	}
	if s.CollectedFees == nil {
		s.CollectedFees = map[string]*big.Int{}
	}
	if s.RewardCheckpoints == nil {
		s.RewardCheckpoints = map[string]*big.Int{}
	}
	if s.TotalLPSupply == nil {
		s.TotalLPSupply = new(big.Int)
	}
	if s.TotalFees == nil {
		s.TotalFees = new(big.Int)
	}
}

// Clone returns a deep copy that shares no integers or maps with s.
func (s *State) Clone() *State {
	return &State{
		Admin:             s.Admin,
		Paused:            s.Paused,
		Pair:              append([]string(nil), s.Pair...),
		Reserves:          cloneBalances(s.Reserves),
		LPShares:          cloneBalances(s.LPShares),
		TotalLPSupply:     cloneInt(s.TotalLPSupply),
		ProtocolFees:      cloneBalances(s.ProtocolFees),
		CollectedFees:     cloneBalances(s.CollectedFees),
		TotalFees:         cloneInt(s.TotalFees),
		RewardCheckpoints: cloneBalances(s.RewardCheckpoints),
	}
}

// IsPaused reports whether swaps are currently refused.
func (s *State) IsPaused() bool { return s.Paused }

// ProtocolFeesOf returns the protocol fee accrued in token.
func (s *State) ProtocolFeesOf(token string) *big.Int { return get(s.ProtocolFees, token) }

// CollectedFeesOf returns the LP-facing fees collected in token.
func (s *State) CollectedFeesOf(token string) *big.Int { return get(s.CollectedFees, token) }

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func cloneBalances(m map[string]*big.Int) map[string]*big.Int {
	out := make(map[string]*big.Int, len(m))
	for k, v := range m {
		out[k] = cloneInt(v)
	}
	return out
}

// get returns a copy, so callers may use the result as scratch space.
func get(m map[string]*big.Int, key string) *big.Int {
	if v, ok := m[key]; ok && v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func add(m map[string]*big.Int, key string, delta *big.Int) {
	v := get(m, key)
	m[key] = v.Add(v, delta)
}
