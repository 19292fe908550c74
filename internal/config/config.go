package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/swap-ledger/internal/auth"
	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/aman-zulfiqar/swap-ledger/internal/ledger"
	"github.com/sirupsen/logrus"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	// API settings
	APIAddr        string
	APIKey         string
	DevMode        bool
	LogLevel       string
	RequestTimeout time.Duration

	// Ledger settings
	AdminAddress   string
	PoolTokenA     string
	PoolTokenB     string
	RewardToken    string
	ProtocolFee    uint64
	LPFee          uint64
	FeeDenominator uint64

	// State persistence
	StateBackend string

	// Redis settings
	RedisAddr string
	RedisDB   int

	// ClickHouse settings; an empty address disables event history
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Rate limiting
	SwapRateLimit float64
	SwapRateBurst int
}

func Load() *Config {
	fees := ledger.DefaultFeeSchedule()
	return &Config{
		// API
		APIAddr:        getEnv("API_ADDR", ":8090"),
		APIKey:         getEnv("API_KEY", ""),
		DevMode:        getBoolEnv("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", constants.DefaultRequestTimeout),

		// Ledger
		AdminAddress:   getEnv("ADMIN_ADDRESS", ""),
		PoolTokenA:     getEnv("POOL_TOKEN_A", ledger.NativeToken),
		PoolTokenB:     getEnv("POOL_TOKEN_B", "USDC-c76f1f"),
		RewardToken:    getEnv("REWARD_TOKEN", ledger.NativeToken),
		ProtocolFee:    getUintEnv("PROTOCOL_FEE", fees.ProtocolFee),
		LPFee:          getUintEnv("LP_FEE", fees.LPFee),
		FeeDenominator: getUintEnv("FEE_DENOMINATOR", fees.Denominator),

		StateBackend: strings.ToLower(getEnv("STATE_BACKEND", BackendMemory)),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getIntEnv("REDIS_DB", 0),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "ledger"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Rate limiting
		SwapRateLimit: getFloatEnv("SWAP_RATE_LIMIT", 10),
		SwapRateBurst: getIntEnv("SWAP_RATE_BURST", 20),
	}
}

// FeeSchedule returns the configured swap fees.
func (c *Config) FeeSchedule() ledger.FeeSchedule {
	return ledger.FeeSchedule{
		ProtocolFee: c.ProtocolFee,
		LPFee:       c.LPFee,
		Denominator: c.FeeDenominator,
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.APIAddr == "" {
		errs = append(errs, errors.New("API_ADDR is required"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.AdminAddress == "" {
		errs = append(errs, errors.New("ADMIN_ADDRESS is required"))
	} else if err := auth.ValidateAddress(c.AdminAddress); err != nil {
		errs = append(errs, fmt.Errorf("ADMIN_ADDRESS: %w", err))
	}
	for key, token := range map[string]string{"POOL_TOKEN_A": c.PoolTokenA, "POOL_TOKEN_B": c.PoolTokenB} {
		if !ledger.ValidTokenID(token) {
			errs = append(errs, fmt.Errorf("%s: %w: %q", key, ledger.ErrInvalidToken, token))
		}
	}
	if c.PoolTokenA == c.PoolTokenB {
		errs = append(errs, fmt.Errorf("POOL_TOKEN_A and POOL_TOKEN_B must differ, both are %q", c.PoolTokenA))
	}
	// LP fees only accrue in the pool's tokens.
	if !ledger.ValidTokenID(c.RewardToken) {
		errs = append(errs, fmt.Errorf("REWARD_TOKEN: %w: %q", ledger.ErrInvalidToken, c.RewardToken))
	} else if c.RewardToken != c.PoolTokenA && c.RewardToken != c.PoolTokenB {
		errs = append(errs, fmt.Errorf("REWARD_TOKEN %q must be one of the pool tokens", c.RewardToken))
	}
	if err := c.FeeSchedule().Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.StateBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STATE_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.StateBackend))
	}

	if c.SwapRateLimit <= 0 {
		errs = append(errs, errors.New("SWAP_RATE_LIMIT must be positive"))
	}
	if c.SwapRateBurst <= 0 {
		errs = append(errs, errors.New("SWAP_RATE_BURST must be positive"))
	}

	return errors.Join(errs...)
}

// Level is the parsed LOG_LEVEL, defaulting to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUintEnv(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
