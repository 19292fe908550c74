package cache

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/aman-zulfiqar/swap-ledger/internal/ledger"
	"github.com/aman-zulfiqar/swap-ledger/internal/models"
	"github.com/aman-zulfiqar/swap-ledger/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func TestChannels(t *testing.T) {
	ev := &models.LedgerEvent{Kind: models.EventSwap, TokenA: "WEGLD-bd4d79", TokenB: "USDC-c76f1f"}
	assert.Equal(t, []string{
		constants.PubSubChannelAll,
		"ledger:kind:swap",
		"ledger:token:WEGLD-bd4d79",
		"ledger:token:USDC-c76f1f",
	}, Channels(ev))

	pause := &models.LedgerEvent{Kind: models.EventSetPaused}
	assert.Equal(t, []string{constants.PubSubChannelAll, "ledger:kind:set_paused"}, Channels(pause))
}

func TestColumnPrice(t *testing.T) {
	p, ok := columnPrice(decimal.RequireFromString("0.91"))
	assert.True(t, ok)
	assert.Equal(t, "0.91", p.String())

	// A 1e21 ratio did not fit Decimal(38, 18).
	wide := decimal.NewFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(21), nil), 0)
	p, ok = columnPrice(wide)
	assert.True(t, ok)
	assert.True(t, p.Equal(wide))

	p, ok = columnPrice(decimal.New(1, 58).Sub(decimal.New(1, -18)))
	assert.True(t, ok)
	assert.Equal(t, 58, len(p.Truncate(0).String()))

	for _, over := range []decimal.Decimal{decimal.New(1, 58), decimal.New(-1, 60)} {
		p, ok = columnPrice(over)
		assert.False(t, ok, "price %s", over)
		assert.True(t, p.IsZero())
	}
}

func TestNewRedisStateStore_NilClient(t *testing.T) {
	_, err := NewRedisStateStore(nil, nil)
	assert.Error(t, err)
}

func TestRedisStateStore_SaveLoad(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStateStore(client, quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNoState)

	s := ledger.NewState("erd1admin")
	s.Credit("WEGLD-bd4d79", big.NewInt(1000))
	s.Paused = true
	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "erd1admin", loaded.Admin)
	assert.True(t, loaded.Paused)
	assert.Equal(t, "1000", loaded.ReserveOf("WEGLD-bd4d79").String())
	assert.NotNil(t, loaded.LPShares)

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestPubSubManager_PublishSubscribe(t *testing.T) {
	client := setupTestRedis(t)
	pubsub := NewPubSubManagerFromClient(client, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *models.LedgerEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- pubsub.Subscribe(ctx, TokenChannel("USDC-c76f1f"), func(ev *models.LedgerEvent) {
			got <- ev
		})
	}()

	ev := &models.LedgerEvent{
		ID:        "8a1f6c2e-5b1d-4d2e-9a43-0f7d1c3b2a10",
		Kind:      models.EventSwap,
		Timestamp: time.Now().UTC(),
		TokenA:    "WEGLD-bd4d79",
		AmountA:   "100",
		TokenB:    "USDC-c76f1f",
		AmountB:   "90",
		Price:     decimal.RequireFromString("0.9"),
	}

	// Subscription setup is asynchronous; republish until it lands.
	require.Eventually(t, func() bool {
		if err := pubsub.PublishEvent(ctx, ev); err != nil {
			return false
		}
		select {
		case recv := <-got:
			assert.Equal(t, ev.ID, recv.ID)
			assert.Equal(t, "90", recv.AmountB)
			assert.True(t, ev.Price.Equal(recv.Price))
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
