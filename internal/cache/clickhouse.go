package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/aman-zulfiqar/swap-ledger/internal/models"
	"github.com/aman-zulfiqar/swap-ledger/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ClickHouseConfig holds connection settings for the event history
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

var _ storage.EventStore = (*ClickHouseStore)(nil)

// Amounts are kept as decimal strings: they are unbounded integers. price is
// Decimal256 with 18 fractional digits, leaving 58 integer digits.
const createEventsTable = `
	CREATE TABLE IF NOT EXISTS ` + constants.ClickHouseEventsTable + ` (
		id           UUID,
		kind         LowCardinality(String),
		timestamp    DateTime64(3),
		caller       String,
		token_a      String,
		amount_a     String,
		token_b      String,
		amount_b     String,
		protocol_fee String,
		lp_fee       String,
		shares       String,
		price        Decimal(76, 18),
		paused       Bool
	) ENGINE = MergeTree()
	ORDER BY (timestamp, id)
`

// maxPrice is the first value the price column cannot hold.
var maxPrice = decimal.New(1, 58)

// columnPrice returns p, or zero and false when p overflows the price column.
func columnPrice(p decimal.Decimal) (decimal.Decimal, bool) {
	if p.Abs().Cmp(maxPrice) >= 0 {
		return decimal.Zero, false
	}
	return p, true
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse addr is empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.WithFields(logrus.Fields{"addr": cfg.Addr, "database": cfg.Database}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: logger}, nil
}

// EnsureSchema creates the events table if it does not exist yet.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("create %s: %w", constants.ClickHouseEventsTable, err)
	}
	return nil
}

func (c *ClickHouseStore) InsertEvent(ctx context.Context, ev *models.LedgerEvent) error {
	query := `
		INSERT INTO ` + constants.ClickHouseEventsTable + ` (
			id, kind, timestamp, caller, token_a, amount_a,
			token_b, amount_b, protocol_fee, lp_fee, shares, price, paused
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	price, ok := columnPrice(ev.Price)
	if !ok {
		c.logger.WithFields(logrus.Fields{
			"event_id": ev.ID,
			"price":    ev.Price.String(),
		}).Warn("price exceeds the history column, storing zero")
	}

	err := c.conn.Exec(ctx, query,
		ev.ID,
		string(ev.Kind),
		ev.Timestamp,
		ev.Caller,
		ev.TokenA,
		ev.AmountA,
		ev.TokenB,
		ev.AmountB,
		ev.ProtocolFee,
		ev.LPFee,
		ev.Shares,
		price,
		ev.Paused,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
