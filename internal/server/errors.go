package server

import (
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/swap-ledger/internal/auth"
	"github.com/aman-zulfiqar/swap-ledger/internal/ledger"
	"github.com/aman-zulfiqar/swap-ledger/internal/pool"
	"github.com/labstack/echo/v4"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		// Handle Echo HTTP errors (like 404, 400, etc.)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		// Handle all other errors as internal server error
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// errorStatus maps service errors to HTTP codes; the first match wins.
var errorStatus = []struct {
	err  error
	code int
}{
	{ledger.ErrUnauthorized, http.StatusForbidden},
	{auth.ErrMissingCaller, http.StatusUnauthorized},
	{auth.ErrInvalidCaller, http.StatusBadRequest},
	{ledger.ErrContractPaused, http.StatusConflict},
	{ledger.ErrInvalidToken, http.StatusBadRequest},
	{ledger.ErrInvalidAmount, http.StatusBadRequest},
	{ledger.ErrInvalidSlippage, http.StatusBadRequest},
	{ledger.ErrSlippageExceeded, http.StatusUnprocessableEntity},
	{ledger.ErrInsufficientOutput, http.StatusUnprocessableEntity},
	{ledger.ErrInsufficientLiquidity, http.StatusUnprocessableEntity},
	{ledger.ErrInsufficientReserve, http.StatusUnprocessableEntity},
	{ledger.ErrInsufficientLPShares, http.StatusUnprocessableEntity},
	{ledger.ErrNoRewardsOrShares, http.StatusUnprocessableEntity},
	{ledger.ErrNoFeesToWithdraw, http.StatusUnprocessableEntity},
	{pool.ErrTransferFailed, http.StatusBadGateway},
	{pool.ErrPersistence, http.StatusInternalServerError},
}

// statusFor returns the HTTP code and public message for err.
func statusFor(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.code, e.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}
