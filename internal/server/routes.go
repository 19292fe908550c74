package server

import (
	"net/http"
	"time"

	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Optional API key authentication; health and metrics stay open to load balancers and scrapers
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:" + constants.HeaderAPIKey,
			Skipper: func(c echo.Context) bool {
				p := c.Request().URL.Path
				return p == "/v1/health" || p == "/metrics"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	// Prometheus exposition uses its own content type
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	// API v1 routes
	v1 := e.Group("/v1", SetJSONContentType, SetNoCacheHeaders)
	v1.GET("/health", h.Health)
	v1.GET("/quote", h.Quote)
	v1.GET("/reserves/:token", h.Reserve)
	v1.GET("/fees/:token", h.ProtocolFees)
	v1.GET("/lp/:address", h.LPBalance)
	v1.GET("/paused", h.Paused)
	v1.GET("/flags", h.FlagsList)

	// Mutating operations require a caller address
	v1.POST("/deposit", h.Deposit, RequireCaller)
	v1.POST("/liquidity/add", h.AddLiquidity, RequireCaller)
	v1.POST("/liquidity/remove", h.RemoveLiquidity, RequireCaller)
	v1.POST("/rewards/claim", h.ClaimRewards, RequireCaller)
	v1.POST("/admin/pause", h.SetPaused, RequireCaller)
	v1.POST("/admin/fees/withdraw", h.WithdrawProtocolFees, RequireCaller)

	// Swaps are rate limited per client IP
	swapLimit := cfg.SwapRateLimit
	if swapLimit <= 0 {
		swapLimit = 10
	}
	swapBurst := cfg.SwapRateBurst
	if swapBurst <= 0 {
		swapBurst = 20
	}
	limiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(swapLimit),
		Burst:     swapBurst,
		ExpiresIn: 2 * time.Minute,
	}))
	v1.POST("/swap", h.Swap, limiter, RequireCaller)

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
