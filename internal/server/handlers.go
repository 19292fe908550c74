package server

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/aman-zulfiqar/swap-ledger/internal/auth"
	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/aman-zulfiqar/swap-ledger/internal/flags"
	"github.com/aman-zulfiqar/swap-ledger/internal/ledger"
	"github.com/aman-zulfiqar/swap-ledger/internal/pool"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const callerKey = "caller"

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Pool    *pool.Service  // Ledger operations
	Flags   *flags.Store   // Redis-backed flags store (optional)
	DevMode bool           // Enable detailed error responses in development
	Logger  *logrus.Logger // Structured logger
	Timeout time.Duration  // Per-request deadline for store round trips
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail maps a service error onto its HTTP status
func (h *Handlers) fail(c echo.Context, err error) error {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError && h.Logger != nil {
		h.Logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return h.err(c, code, msg, err.Error())
}

// withTimeout creates a context with timeout, defaulting to 5 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = constants.DefaultRequestTimeout
	}
	return context.WithTimeout(ctx, d)
}

// RequireCaller resolves X-Caller-Address and stores it on the context
func RequireCaller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		caller, err := auth.CallerFromRequest(c.Request())
		if err != nil {
			code, msg := statusFor(err)
			return c.JSON(code, ErrorResponse{Error: msg, Code: code})
		}
		c.Set(callerKey, caller)
		return next(c)
	}
}

func caller(c echo.Context) string {
	s, _ := c.Get(callerKey).(string)
	return s
}

// parseAmount reads a non-empty base-10 integer
func parseAmount(field, raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: %s is required", ledger.ErrInvalidAmount, field)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a base-10 integer", ledger.ErrInvalidAmount, field)
	}
	return v, nil
}

func str(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Health reports whether the state store is reachable
func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	if err := h.Pool.Ping(ctx); err != nil {
		return h.err(c, http.StatusServiceUnavailable, "state store unavailable", err.Error())
	}
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

func (h *Handlers) Deposit(c echo.Context) error {
	var req DepositRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	reserve, err := h.Pool.Deposit(ctx, caller(c), req.Token, amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, AmountResponse{Token: req.Token, Amount: str(reserve)})
}

func (h *Handlers) AddLiquidity(c echo.Context) error {
	var req AddLiquidityRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	amountA, err := parseAmount("amount_a", req.AmountA)
	if err != nil {
		return h.fail(c, err)
	}
	amountB, err := parseAmount("amount_b", req.AmountB)
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	res, err := h.Pool.AddLiquidity(ctx, caller(c), req.TokenA, amountA, req.TokenB, amountB)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, liquidityResponse(res))
}

func (h *Handlers) RemoveLiquidity(c echo.Context) error {
	var req RemoveLiquidityRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	lp, err := parseAmount("lp_amount", req.LPAmount)
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	res, err := h.Pool.RemoveLiquidity(ctx, caller(c), req.TokenA, req.TokenB, lp)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, liquidityResponse(res))
}

func liquidityResponse(r *ledger.LiquidityResult) LiquidityResponse {
	return LiquidityResponse{
		Provider:      r.Provider,
		TokenA:        r.TokenA,
		TokenB:        r.TokenB,
		AmountA:       str(r.AmountA),
		AmountB:       str(r.AmountB),
		Shares:        str(r.Shares),
		TotalLPSupply: str(r.TotalLPSupply),
	}
}

func (h *Handlers) Swap(c echo.Context) error {
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	amountIn, err := parseAmount("amount_in", req.AmountIn)
	if err != nil {
		return h.fail(c, err)
	}
	minOut := new(big.Int)
	if strings.TrimSpace(req.MinAmountOut) != "" {
		if minOut, err = parseAmount("min_amount_out", req.MinAmountOut); err != nil {
			return h.fail(c, err)
		}
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	res, err := h.Pool.Swap(ctx, caller(c), ledger.SwapRequest{
		TokenIn:      req.TokenIn,
		AmountIn:     amountIn,
		TokenOut:     req.TokenOut,
		MinAmountOut: minOut,
		SlippageBps:  req.SlippageBps,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, SwapResponse{
		TokenIn:        res.TokenIn,
		TokenOut:       res.TokenOut,
		AmountIn:       str(res.AmountIn),
		AmountAfterFee: str(res.AmountAfterFee),
		ProtocolFee:    str(res.ProtocolFee),
		LPFee:          str(res.LPFee),
		MinRate:        str(res.MinRate),
		AmountOut:      str(res.AmountOut),
		ReserveIn:      str(res.ReserveIn),
		ReserveOut:     str(res.ReserveOut),
	})
}

func (h *Handlers) ClaimRewards(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	res, err := h.Pool.ClaimRewards(ctx, caller(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, RewardResponse{Holder: res.Holder, Token: res.Token, Amount: str(res.Amount)})
}

func (h *Handlers) SetPaused(c echo.Context) error {
	var req PauseRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	if err := h.Pool.SetPaused(ctx, caller(c), req.Paused); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, PausedResponse{Paused: req.Paused})
}

func (h *Handlers) WithdrawProtocolFees(c echo.Context) error {
	var req WithdrawFeesRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	amount, err := h.Pool.WithdrawProtocolFees(ctx, caller(c), req.Token)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, AmountResponse{Token: req.Token, Amount: str(amount)})
}

// Quote previews a swap without booking it
// Query parameters: token_in, token_out, amount
func (h *Handlers) Quote(c echo.Context) error {
	tokenIn := strings.TrimSpace(c.QueryParam("token_in"))
	tokenOut := strings.TrimSpace(c.QueryParam("token_out"))
	amount, err := parseAmount("amount", c.QueryParam("amount"))
	if err != nil {
		return h.fail(c, err)
	}

	q, err := h.Pool.Quote(tokenIn, tokenOut, amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, QuoteResponse{
		TokenIn:        q.TokenIn,
		TokenOut:       q.TokenOut,
		AmountIn:       str(q.AmountIn),
		ProtocolFee:    str(q.ProtocolFee),
		LPFee:          str(q.LPFee),
		AmountAfterFee: str(q.AmountAfterFee),
		AmountOut:      str(q.AmountOut),
		ReserveIn:      str(q.ReserveIn),
		ReserveOut:     str(q.ReserveOut),
	})
}

func (h *Handlers) Reserve(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	return c.JSON(http.StatusOK, AmountResponse{Token: token, Amount: str(h.Pool.ReserveOf(token))})
}

func (h *Handlers) ProtocolFees(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	return c.JSON(http.StatusOK, AmountResponse{Token: token, Amount: str(h.Pool.ProtocolFeesOf(token))})
}

func (h *Handlers) LPBalance(c echo.Context) error {
	addr := strings.TrimSpace(c.Param("address"))
	if err := auth.ValidateAddress(addr); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", nil)
	}
	return c.JSON(http.StatusOK, LPBalanceResponse{Address: addr, Shares: str(h.Pool.LPBalance(addr))})
}

func (h *Handlers) Paused(c echo.Context) error {
	return c.JSON(http.StatusOK, PausedResponse{Paused: h.Pool.IsPaused()})
}

// FlagsList returns the operator flags mirrored from the ledger
func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusNotFound, "flags store is not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}
