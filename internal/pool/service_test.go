package pool

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/aman-zulfiqar/swap-ledger/internal/flags"
	"github.com/aman-zulfiqar/swap-ledger/internal/ledger"
	"github.com/aman-zulfiqar/swap-ledger/internal/metrics"
	"github.com/aman-zulfiqar/swap-ledger/internal/models"
	"github.com/aman-zulfiqar/swap-ledger/internal/storage"
	"github.com/aman-zulfiqar/swap-ledger/internal/transfer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	admin  = "erd1admin"
	alice  = "erd1alice"
	bob    = "erd1bob"
	tokenA = "WEGLD-bd4d79"
	tokenB = "USDC-c76f1f"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.LedgerEvent
	err    error
}

func (f *fakePublisher) PublishEvent(_ context.Context, ev *models.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

type fakeHistory struct {
	fakePublisher
}

func (f *fakeHistory) InsertEvent(ctx context.Context, ev *models.LedgerEvent) error {
	return f.PublishEvent(ctx, ev)
}
func (f *fakeHistory) Ping(context.Context) error { return nil }
func (f *fakeHistory) Close() error               { return nil }

type fakeFlags struct {
	mu    sync.Mutex
	flags map[string]*flags.Flag
}

func newFakeFlags() *fakeFlags { return &fakeFlags{flags: map[string]*flags.Flag{}} }

func (f *fakeFlags) Upsert(_ context.Context, key string, value bool, by string) (*flags.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl := &flags.Flag{Key: key, Value: value, UpdatedBy: by, UpdatedAt: time.Now()}
	f.flags[key] = fl
	return fl, nil
}

func (f *fakeFlags) Get(_ context.Context, key string) (*flags.Flag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.flags[key]
	if !ok {
		return nil, flags.ErrNotFound
	}
	return fl, nil
}

type flakyStore struct {
	*storage.MemoryStore
	fail bool
}

func (f *flakyStore) Save(ctx context.Context, s *ledger.State) error {
	if f.fail {
		return errors.New("connection refused")
	}
	return f.MemoryStore.Save(ctx, s)
}

type failingTransferer struct{}

func (failingTransferer) Transfer(context.Context, transfer.Transfer) error {
	return errors.New("node unavailable")
}

type fixture struct {
	svc       *Service
	store     *flakyStore
	transfers *transfer.LogTransferer
	publisher *fakePublisher
	history   *fakeHistory
	flags     *fakeFlags
	metrics   *metrics.Metrics
	logs      *test.Hook
}

func newFixture(t *testing.T, opts ...ledger.Option) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	engine, err := ledger.NewEngine(opts...)
	require.NoError(t, err)

	f := &fixture{
		store:     &flakyStore{MemoryStore: storage.NewMemoryStore()},
		transfers: transfer.NewLogTransferer(logger),
		publisher: &fakePublisher{},
		history:   &fakeHistory{},
		flags:     newFakeFlags(),
		metrics:   metrics.New(prometheus.NewRegistry()),
		logs:      hook,
	}
	f.svc, err = New(context.Background(), Deps{
		Engine:    engine,
		Store:     f.store,
		Transfers: f.transfers,
		Admin:     admin,
		Flags:     f.flags,
		Publisher: f.publisher,
		History:   f.history,
		Metrics:   f.metrics,
		Logger:    logger,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) seedPool(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.AddLiquidity(ctx, alice, tokenA, big.NewInt(1000), tokenB, big.NewInt(1000))
	require.NoError(t, err)
}

func stateJSON(t *testing.T, s *ledger.State) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(context.Background(), Deps{})
	assert.Error(t, err)
}

func TestNew_RequiresAdminForFreshLedger(t *testing.T) {
	engine, err := ledger.NewEngine()
	require.NoError(t, err)
	_, err = New(context.Background(), Deps{
		Engine:    engine,
		Store:     storage.NewMemoryStore(),
		Transfers: transfer.NewLogTransferer(nil),
	})
	assert.Error(t, err)
}

func TestNew_CreatesAndPersistsLedger(t *testing.T) {
	f := newFixture(t)

	loaded, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, admin, loaded.Admin)
	assert.False(t, f.svc.IsPaused())

	// The pause flag is seeded from the new ledger.
	fl, err := f.flags.Get(context.Background(), constants.FlagPaused)
	require.NoError(t, err)
	assert.False(t, fl.Value)
}

func TestNew_ResumesStoredLedger(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s := ledger.NewState("erd1owner")
	s.Credit(tokenA, big.NewInt(500))
	require.NoError(t, store.Save(ctx, s))

	engine, err := ledger.NewEngine()
	require.NoError(t, err)
	svc, err := New(ctx, Deps{
		Engine:    engine,
		Store:     store,
		Transfers: transfer.NewLogTransferer(nil),
		Admin:     admin,
	})
	require.NoError(t, err)
	assert.Equal(t, "500", svc.ReserveOf(tokenA).String())
	assert.Equal(t, "erd1owner", svc.Snapshot().Admin)
}

func TestNew_RejectsCorruptLedger(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s := ledger.NewState(admin)
	s.LPShares[alice] = big.NewInt(10)
	require.NoError(t, store.Save(ctx, s))

	engine, err := ledger.NewEngine()
	require.NoError(t, err)
	_, err = New(ctx, Deps{Engine: engine, Store: store, Transfers: transfer.NewLogTransferer(nil)})
	assert.ErrorIs(t, err, ledger.ErrInvariantViolated)
}

func TestNew_RejectsLedgerBoundToOtherPair(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s := ledger.NewState(admin)
	s.Pair = []string{ledger.NativeToken, tokenB}
	require.NoError(t, store.Save(ctx, s))

	engine, err := ledger.NewEngine(ledger.WithPair(tokenA, tokenB))
	require.NoError(t, err)
	_, err = New(ctx, Deps{Engine: engine, Store: store, Transfers: transfer.NewLogTransferer(nil)})
	assert.ErrorIs(t, err, ledger.ErrInvalidToken)
}

func TestService_RejectsLiquidityOutsidePoolPair(t *testing.T) {
	f := newFixture(t, ledger.WithPair(tokenA, tokenB))
	f.seedPool(t)
	ctx := context.Background()
	saves := f.store.Saves()

	_, err := f.svc.Deposit(ctx, bob, "JUNK-000001", big.NewInt(1))
	assert.ErrorIs(t, err, ledger.ErrInvalidToken)
	_, err = f.svc.AddLiquidity(ctx, bob, "JUNK-000001", big.NewInt(1000), "TRASH-000002", big.NewInt(1000))
	assert.ErrorIs(t, err, ledger.ErrInvalidToken)

	assert.Equal(t, saves, f.store.Saves())
	assert.Zero(t, f.svc.LPBalance(bob).Sign())

	loaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{tokenA, tokenB}, loaded.Pair)
}

func TestNew_PauseFlagOverridesState(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	fl := newFakeFlags()
	_, err := fl.Upsert(ctx, constants.FlagPaused, true, "ops")
	require.NoError(t, err)

	engine, err := ledger.NewEngine()
	require.NoError(t, err)
	svc, err := New(ctx, Deps{
		Engine:    engine,
		Store:     store,
		Transfers: transfer.NewLogTransferer(nil),
		Admin:     admin,
		Flags:     fl,
	})
	require.NoError(t, err)
	assert.True(t, svc.IsPaused())

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Paused)
}

func TestService_SwapCommitsThenTransfers(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t)
	ctx := context.Background()

	res, err := f.svc.Swap(ctx, alice, ledger.SwapRequest{
		TokenIn:      tokenA,
		AmountIn:     big.NewInt(100),
		TokenOut:     tokenB,
		MinAmountOut: big.NewInt(1),
		SlippageBps:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, "91", res.AmountOut.String())

	assert.Equal(t, "1100", f.svc.ReserveOf(tokenA).String())
	assert.Equal(t, "909", f.svc.ReserveOf(tokenB).String())

	loaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, stateJSON(t, f.svc.Snapshot()), stateJSON(t, loaded))

	sent := f.transfers.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, alice, sent[0].To)
	assert.Equal(t, tokenB, sent[0].Token)
	assert.Equal(t, "91", sent[0].Amount.String())
	assert.Equal(t, transfer.ReasonSwapOutput, sent[0].Reason)

	require.Len(t, f.publisher.events, 2)
	ev := f.publisher.events[1]
	assert.Equal(t, models.EventSwap, ev.Kind)
	assert.Equal(t, alice, ev.Caller)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, ev.ID, sent[0].EventID)
	assert.Equal(t, "100", ev.AmountA)
	assert.Equal(t, "91", ev.AmountB)
	assert.Equal(t, "0", ev.ProtocolFee)
	assert.Equal(t, "0.91", ev.Price.String())
	assert.Len(t, f.history.events, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("swap", metrics.ResultOK)))
	assert.Equal(t, 100.0, testutil.ToFloat64(f.metrics.SwapVolume.WithLabelValues(tokenA)))
	assert.Equal(t, 909.0, testutil.ToFloat64(f.metrics.Reserves.WithLabelValues(tokenB)))
}

func TestService_RejectedOperationChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t)
	ctx := context.Background()

	before := stateJSON(t, f.svc.Snapshot())
	saves := f.store.Saves()

	_, err := f.svc.Swap(ctx, alice, ledger.SwapRequest{
		TokenIn:      tokenA,
		AmountIn:     big.NewInt(100),
		TokenOut:     tokenB,
		MinAmountOut: big.NewInt(95),
		SlippageBps:  5,
	})
	assert.ErrorIs(t, err, ledger.ErrSlippageExceeded)

	assert.Equal(t, before, stateJSON(t, f.svc.Snapshot()))
	assert.Equal(t, saves, f.store.Saves())
	assert.Empty(t, f.transfers.Sent())
	assert.Len(t, f.publisher.events, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("swap", metrics.ResultRejected)))
}

func TestService_SwapRequiresCaller(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t)

	_, err := f.svc.Swap(context.Background(), "", ledger.SwapRequest{
		TokenIn: tokenA, AmountIn: big.NewInt(10), TokenOut: tokenB,
	})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func TestService_PersistenceFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t)
	before := stateJSON(t, f.svc.Snapshot())

	f.store.fail = true
	_, err := f.svc.Deposit(context.Background(), alice, tokenA, big.NewInt(50))
	assert.ErrorIs(t, err, ErrPersistence)

	assert.Equal(t, before, stateJSON(t, f.svc.Snapshot()))
	assert.Len(t, f.publisher.events, 1)
}

func TestService_TransferFailureAfterCommit(t *testing.T) {
	logger, _ := test.NewNullLogger()
	engine, err := ledger.NewEngine()
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	svc, err := New(context.Background(), Deps{
		Engine:    engine,
		Store:     store,
		Transfers: failingTransferer{},
		Admin:     admin,
		Logger:    logger,
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.AddLiquidity(ctx, alice, tokenA, big.NewInt(1000), tokenB, big.NewInt(1000))
	require.NoError(t, err)

	res, err := svc.RemoveLiquidity(ctx, alice, tokenA, tokenB, big.NewInt(100))
	assert.ErrorIs(t, err, ErrTransferFailed)
	require.NotNil(t, res)
	assert.Equal(t, "900", svc.LPBalance(alice).String())

	// The booked removal is persisted even though the payout failed.
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "900", loaded.LPBalance(alice).String())
}

func TestService_RewardsAndRemoval(t *testing.T) {
	f := newFixture(t, ledger.WithRewardToken(tokenA))
	f.seedPool(t)
	ctx := context.Background()

	_, err := f.svc.Swap(ctx, alice, ledger.SwapRequest{
		TokenIn: tokenA, AmountIn: big.NewInt(1_000_000), TokenOut: tokenB, SlippageBps: 100,
	})
	require.NoError(t, err)

	// share = 1000*2/1000 = 2, reward = 2*2000/1000 = 4
	reward, err := f.svc.ClaimRewards(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, tokenA, reward.Token)
	assert.Equal(t, "4", reward.Amount.String())
	assert.Equal(t, "1000", f.svc.LPBalance(alice).String())

	_, err = f.svc.ClaimRewards(ctx, alice)
	assert.ErrorIs(t, err, ledger.ErrNoRewardsOrShares)

	// Reserves are now 1000996 / 1: removing half pays 500498 of tokenA and
	// nothing of tokenB.
	res, err := f.svc.RemoveLiquidity(ctx, alice, tokenA, tokenB, big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, "500498", res.AmountA.String())
	assert.Equal(t, "0", res.AmountB.String())
	assert.Equal(t, "500", f.svc.LPBalance(alice).String())

	var reasons []transfer.Reason
	for _, tr := range f.transfers.Sent() {
		reasons = append(reasons, tr.Reason)
	}
	assert.Equal(t, []transfer.Reason{
		transfer.ReasonSwapOutput,
		transfer.ReasonLPReward,
		transfer.ReasonLiquidityOut,
	}, reasons)
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.RewardsPaid.WithLabelValues(tokenA)))
}

func TestService_WithdrawProtocolFees(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t)
	ctx := context.Background()

	_, err := f.svc.Swap(ctx, alice, ledger.SwapRequest{
		TokenIn: tokenA, AmountIn: big.NewInt(5000), TokenOut: tokenB, SlippageBps: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "5", f.svc.ProtocolFeesOf(tokenA).String())

	_, err = f.svc.WithdrawProtocolFees(ctx, alice, tokenA)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	amount, err := f.svc.WithdrawProtocolFees(ctx, admin, tokenA)
	require.NoError(t, err)
	assert.Equal(t, "5", amount.String())
	assert.Equal(t, "0", f.svc.ProtocolFeesOf(tokenA).String())

	sent := f.transfers.Sent()
	last := sent[len(sent)-1]
	assert.Equal(t, admin, last.To)
	assert.Equal(t, transfer.ReasonProtocolFees, last.Reason)
}

func TestService_SetPausedMirrorsFlag(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.SetPaused(ctx, alice, true), ledger.ErrUnauthorized)
	require.NoError(t, f.svc.SetPaused(ctx, admin, true))
	assert.True(t, f.svc.IsPaused())

	fl, err := f.flags.Get(ctx, constants.FlagPaused)
	require.NoError(t, err)
	assert.True(t, fl.Value)
	assert.Equal(t, admin, fl.UpdatedBy)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Paused))

	_, err = f.svc.Swap(ctx, alice, ledger.SwapRequest{
		TokenIn: tokenA, AmountIn: big.NewInt(10), TokenOut: tokenB,
	})
	assert.ErrorIs(t, err, ledger.ErrContractPaused)

	// Liquidity is not gated by the pause.
	_, err = f.svc.AddLiquidity(ctx, alice, tokenA, big.NewInt(10), tokenB, big.NewInt(10))
	assert.NoError(t, err)
}

func TestService_PublishFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("redis down")

	_, err := f.svc.Deposit(context.Background(), alice, tokenA, big.NewInt(1))
	require.NoError(t, err)

	var warned bool
	for _, e := range f.logs.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "failed to publish event" {
			warned = true
		}
	}
	assert.True(t, warned)
	assert.Len(t, f.history.events, 1)
}

func TestService_ConcurrentSwapsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddLiquidity(ctx, alice, tokenA, big.NewInt(1_000_000), tokenB, big.NewInt(1_000_000))
	require.NoError(t, err)

	const workers, swaps = 8, 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in, out := tokenA, tokenB
			if i%2 == 1 {
				in, out = out, in
			}
			for j := 0; j < swaps; j++ {
				_, err := f.svc.Swap(ctx, alice, ledger.SwapRequest{
					TokenIn: in, AmountIn: big.NewInt(1000), TokenOut: out, SlippageBps: 100,
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	snap := f.svc.Snapshot()
	require.NoError(t, ledger.CheckInvariants(snap))
	assert.Len(t, f.transfers.Sent(), workers*swaps)

	loaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, stateJSON(t, snap), stateJSON(t, loaded))
}

func TestService_Quote(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t)

	q, err := f.svc.Quote(tokenA, tokenB, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, "91", q.AmountOut.String())
	assert.Equal(t, "1000", f.svc.ReserveOf(tokenA).String())
}
