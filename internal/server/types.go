package server

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"`
}

// All amounts below are base-10 integer strings.

type DepositRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type AddLiquidityRequest struct {
	TokenA  string `json:"token_a"`
	AmountA string `json:"amount_a"`
	TokenB  string `json:"token_b"`
	AmountB string `json:"amount_b"`
}

type RemoveLiquidityRequest struct {
	TokenA   string `json:"token_a"`
	TokenB   string `json:"token_b"`
	LPAmount string `json:"lp_amount"`
}

type SwapRequest struct {
	TokenIn      string `json:"token_in"`
	AmountIn     string `json:"amount_in"`
	TokenOut     string `json:"token_out"`
	MinAmountOut string `json:"min_amount_out"` // Optional, defaults to 0
	SlippageBps  uint64 `json:"slippage_bps"`   // Percentage 0-100
}

type PauseRequest struct {
	Paused bool `json:"paused"`
}

type WithdrawFeesRequest struct {
	Token string `json:"token"`
}

type SwapResponse struct {
	TokenIn        string `json:"token_in"`
	TokenOut       string `json:"token_out"`
	AmountIn       string `json:"amount_in"`
	AmountAfterFee string `json:"amount_after_fee"`
	ProtocolFee    string `json:"protocol_fee"`
	LPFee          string `json:"lp_fee"`
	MinRate        string `json:"min_rate"`
	AmountOut      string `json:"amount_out"`
	ReserveIn      string `json:"reserve_in"`
	ReserveOut     string `json:"reserve_out"`
}

type QuoteResponse struct {
	TokenIn        string `json:"token_in"`
	TokenOut       string `json:"token_out"`
	AmountIn       string `json:"amount_in"`
	ProtocolFee    string `json:"protocol_fee"`
	LPFee          string `json:"lp_fee"`
	AmountAfterFee string `json:"amount_after_fee"`
	AmountOut      string `json:"amount_out"`
	ReserveIn      string `json:"reserve_in"`
	ReserveOut     string `json:"reserve_out"`
}

type LiquidityResponse struct {
	Provider      string `json:"provider"`
	TokenA        string `json:"token_a"`
	TokenB        string `json:"token_b"`
	AmountA       string `json:"amount_a"`
	AmountB       string `json:"amount_b"`
	Shares        string `json:"shares"`
	TotalLPSupply string `json:"total_lp_supply"`
}

type RewardResponse struct {
	Holder string `json:"holder"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// AmountResponse carries a single token amount (reserves, withdrawals).
type AmountResponse struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type LPBalanceResponse struct {
	Address string `json:"address"`
	Shares  string `json:"shares"`
}

type PausedResponse struct {
	Paused bool `json:"paused"`
}
