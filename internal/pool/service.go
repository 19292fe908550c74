// Package pool runs ledger operations against a persisted state. It holds
// the single writer lock, commits each result to the state store and only
// then moves tokens and emits events.
package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/aman-zulfiqar/swap-ledger/internal/constants"
	"github.com/aman-zulfiqar/swap-ledger/internal/flags"
	"github.com/aman-zulfiqar/swap-ledger/internal/ledger"
	"github.com/aman-zulfiqar/swap-ledger/internal/metrics"
	"github.com/aman-zulfiqar/swap-ledger/internal/models"
	"github.com/aman-zulfiqar/swap-ledger/internal/storage"
	"github.com/aman-zulfiqar/swap-ledger/internal/transfer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// ErrPersistence wraps state store failures; the operation was not applied.
	ErrPersistence = errors.New("persist ledger state")
	// ErrTransferFailed means the ledger committed but an outgoing transfer
	// did not go through.
	ErrTransferFailed = errors.New("transfer failed after commit")
)

const pricePrecision = 18

// PauseFlags is the subset of the flags store the service mirrors into.
type PauseFlags interface {
	Upsert(ctx context.Context, key string, value bool, updatedBy string) (*flags.Flag, error)
	Get(ctx context.Context, key string) (*flags.Flag, error)
}

// Deps wires the service. Engine, Store and Transfers are required; the rest
// may be nil.
type Deps struct {
	Engine    *ledger.Engine
	Store     storage.StateStore
	Transfers transfer.Transferer

	// Admin administers a ledger created on first start. A stored ledger
	// keeps its own admin.
	Admin string

	Flags     PauseFlags
	Publisher storage.EventPublisher
	History   storage.EventStore
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
	Now       func() time.Time
}

type Service struct {
	engine    *ledger.Engine
	store     storage.StateStore
	transfers transfer.Transferer
	flags     PauseFlags
	publisher storage.EventPublisher
	history   storage.EventStore
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	now       func() time.Time

	mu    sync.RWMutex
	state *ledger.State
}

// effect is what a committed operation still owes the outside world.
type effect struct {
	event     *models.LedgerEvent
	transfers []transfer.Transfer
	after     func(ctx context.Context)
}

// New loads the stored ledger, creating and saving an empty one on first
// start, and reconciles the pause flag.
func New(ctx context.Context, deps Deps) (*Service, error) {
	if deps.Engine == nil || deps.Store == nil || deps.Transfers == nil {
		return nil, fmt.Errorf("pool: engine, store and transfers are required")
	}
	s := &Service{
		engine:    deps.Engine,
		store:     deps.Store,
		transfers: deps.Transfers,
		flags:     deps.Flags,
		publisher: deps.Publisher,
		history:   deps.History,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	state, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNoState):
		if deps.Admin == "" {
			return nil, fmt.Errorf("pool: admin address is required for a new ledger")
		}
		state = ledger.NewState(deps.Admin)
		if err := s.store.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		s.logger.WithField("admin", deps.Admin).Info("created new ledger")
	case err != nil:
		return nil, fmt.Errorf("load ledger state: %w", err)
	default:
		if err := ledger.CheckInvariants(state); err != nil {
			return nil, fmt.Errorf("stored ledger state: %w", err)
		}
		if err := s.engine.CheckBinding(state); err != nil {
			return nil, fmt.Errorf("stored ledger state: %w", err)
		}
		if deps.Admin != "" && deps.Admin != state.Admin {
			s.logger.WithFields(logrus.Fields{
				"configured": deps.Admin,
				"stored":     state.Admin,
			}).Warn("configured admin differs from stored ledger, keeping stored admin")
		}
	}
	s.state = state

	if err := s.reconcilePause(ctx); err != nil {
		return nil, err
	}
	s.metrics.ObserveState(s.state)
	return s, nil
}

// reconcilePause lets an operator-set pause flag override the stored state,
// and seeds the flag when it is missing.
func (s *Service) reconcilePause(ctx context.Context) error {
	if s.flags == nil {
		return nil
	}
	f, err := s.flags.Get(ctx, constants.FlagPaused)
	if errors.Is(err, flags.ErrNotFound) {
		s.mirrorPause(ctx, s.state.Paused, s.state.Admin)
		return nil
	}
	if err != nil {
		s.logger.WithError(err).Warn("failed to read pause flag, keeping stored state")
		return nil
	}
	if f.Value == s.state.Paused {
		return nil
	}

	next := s.state.Clone()
	next.Paused = f.Value
	if err := s.store.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.state = next
	s.logger.WithFields(logrus.Fields{
		"paused":     f.Value,
		"updated_by": f.UpdatedBy,
	}).Warn("pause state taken from flags store")
	return nil
}

func (s *Service) mirrorPause(ctx context.Context, paused bool, by string) {
	if s.flags == nil {
		return
	}
	if _, err := s.flags.Upsert(ctx, constants.FlagPaused, paused, by); err != nil {
		s.logger.WithError(err).Warn("failed to mirror pause flag")
	}
}

// apply runs fn on a clone of the current state and commits the clone when
// fn succeeds and the invariants hold. Transfers, events and metrics follow
// the commit.
func (s *Service) apply(ctx context.Context, op models.EventKind, caller string, fn func(next *ledger.State) (*effect, error)) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.WithFields(logrus.Fields{"op": op, "caller": caller})

	next := s.state.Clone()
	eff, err := fn(next)
	if err != nil {
		s.metrics.ObserveOperation(string(op), metrics.ResultRejected, time.Since(start))
		log.WithError(err).Debug("operation rejected")
		return err
	}
	if err := ledger.CheckInvariants(next); err != nil {
		s.metrics.ObserveOperation(string(op), metrics.ResultError, time.Since(start))
		log.WithError(err).Error("invariant check failed, result discarded")
		return err
	}
	if err := s.store.Save(ctx, next); err != nil {
		s.metrics.ObserveOperation(string(op), metrics.ResultError, time.Since(start))
		log.WithError(err).Error("failed to persist ledger state")
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.state = next

	ev := eff.event
	ev.ID = uuid.NewString()
	ev.Kind = op
	ev.Timestamp = s.now()
	ev.Caller = caller
	log = log.WithField("event_id", ev.ID)

	var transferErr error
	for _, tr := range eff.transfers {
		tr.EventID = ev.ID
		if err := s.transfers.Transfer(ctx, tr); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"to":     tr.To,
				"token":  tr.Token,
				"amount": tr.Amount.String(),
			}).Error("transfer failed after commit")
			transferErr = errors.Join(transferErr, err)
		}
	}
	if eff.after != nil {
		eff.after(ctx)
	}
	s.emit(ctx, log, ev)

	s.metrics.ObserveOperation(string(op), metrics.ResultOK, time.Since(start))
	s.metrics.ObserveState(next)
	log.WithFields(logrus.Fields{
		"token_a":  ev.TokenA,
		"amount_a": ev.AmountA,
		"token_b":  ev.TokenB,
		"amount_b": ev.AmountB,
	}).Info("operation committed")

	if transferErr != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, transferErr)
	}
	return nil
}

// emit publishes ev and appends it to the history. Failures are logged; the
// ledger is already committed.
func (s *Service) emit(ctx context.Context, log *logrus.Entry, ev *models.LedgerEvent) {
	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, ev); err != nil {
			log.WithError(err).Warn("failed to publish event")
		}
	}
	if s.history != nil {
		if err := s.history.InsertEvent(ctx, ev); err != nil {
			log.WithError(err).Warn("failed to record event history")
		}
	}
}

// outgoing builds a transfer, or nothing for a zero amount.
func outgoing(to, token string, amount *big.Int, reason transfer.Reason) []transfer.Transfer {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	return []transfer.Transfer{{To: to, Token: token, Amount: new(big.Int).Set(amount), Reason: reason}}
}

func amountString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func (s *Service) Deposit(ctx context.Context, caller, token string, amount *big.Int) (*big.Int, error) {
	var reserve *big.Int
	err := s.apply(ctx, models.EventDeposit, caller, func(next *ledger.State) (*effect, error) {
		r, err := s.engine.Deposit(next, token, amount)
		if err != nil {
			return nil, err
		}
		reserve = r
		return &effect{event: &models.LedgerEvent{TokenA: token, AmountA: amount.String()}}, nil
	})
	return reserve, err
}

// Swap books req for caller and pays out the quoted amount. On
// ErrTransferFailed the result is still returned: the swap is committed.
func (s *Service) Swap(ctx context.Context, caller string, req ledger.SwapRequest) (*ledger.SwapResult, error) {
	var res *ledger.SwapResult
	err := s.apply(ctx, models.EventSwap, caller, func(next *ledger.State) (*effect, error) {
		if caller == "" {
			return nil, fmt.Errorf("%w: caller is required", ledger.ErrUnauthorized)
		}
		r, err := s.engine.Swap(next, req)
		if err != nil {
			return nil, err
		}
		res = r
		price := decimal.NewFromBigInt(r.AmountOut, 0).DivRound(decimal.NewFromBigInt(r.AmountIn, 0), pricePrecision)
		return &effect{
			event: &models.LedgerEvent{
				TokenA:      r.TokenIn,
				AmountA:     r.AmountIn.String(),
				TokenB:      r.TokenOut,
				AmountB:     r.AmountOut.String(),
				ProtocolFee: r.ProtocolFee.String(),
				LPFee:       r.LPFee.String(),
				Price:       price,
			},
			transfers: outgoing(caller, r.TokenOut, r.AmountOut, transfer.ReasonSwapOutput),
			after: func(context.Context) {
				if s.metrics != nil {
					metrics.Add(s.metrics.SwapVolume.WithLabelValues(r.TokenIn), r.AmountIn)
					metrics.Add(s.metrics.FeesCollected.WithLabelValues(r.TokenIn, "protocol"), r.ProtocolFee)
					metrics.Add(s.metrics.FeesCollected.WithLabelValues(r.TokenIn, "lp"), r.LPFee)
				}
			},
		}, nil
	})
	return res, err
}

func (s *Service) AddLiquidity(ctx context.Context, caller, tokenA string, amountA *big.Int, tokenB string, amountB *big.Int) (*ledger.LiquidityResult, error) {
	var res *ledger.LiquidityResult
	err := s.apply(ctx, models.EventAddLiquidity, caller, func(next *ledger.State) (*effect, error) {
		r, err := s.engine.AddLiquidity(next, caller, tokenA, amountA, tokenB, amountB)
		if err != nil {
			return nil, err
		}
		res = r
		return &effect{
			event: liquidityEvent(r),
			after: func(context.Context) {
				if s.metrics != nil {
					metrics.Add(s.metrics.LiquidityAdded.WithLabelValues(r.TokenA), r.AmountA)
					metrics.Add(s.metrics.LiquidityAdded.WithLabelValues(r.TokenB), r.AmountB)
				}
			},
		}, nil
	})
	return res, err
}

func (s *Service) RemoveLiquidity(ctx context.Context, caller, tokenA, tokenB string, lpAmount *big.Int) (*ledger.LiquidityResult, error) {
	var res *ledger.LiquidityResult
	err := s.apply(ctx, models.EventRemoveLiquidity, caller, func(next *ledger.State) (*effect, error) {
		r, err := s.engine.RemoveLiquidity(next, caller, tokenA, tokenB, lpAmount)
		if err != nil {
			return nil, err
		}
		res = r
		transfers := outgoing(caller, r.TokenA, r.AmountA, transfer.ReasonLiquidityOut)
		transfers = append(transfers, outgoing(caller, r.TokenB, r.AmountB, transfer.ReasonLiquidityOut)...)
		return &effect{
			event:     liquidityEvent(r),
			transfers: transfers,
			after: func(context.Context) {
				if s.metrics != nil {
					metrics.Add(s.metrics.LiquidityRemoved.WithLabelValues(r.TokenA), r.AmountA)
					metrics.Add(s.metrics.LiquidityRemoved.WithLabelValues(r.TokenB), r.AmountB)
				}
			},
		}, nil
	})
	return res, err
}

func liquidityEvent(r *ledger.LiquidityResult) *models.LedgerEvent {
	return &models.LedgerEvent{
		TokenA:  r.TokenA,
		AmountA: amountString(r.AmountA),
		TokenB:  r.TokenB,
		AmountB: amountString(r.AmountB),
		Shares:  amountString(r.Shares),
	}
}

func (s *Service) ClaimRewards(ctx context.Context, caller string) (*ledger.RewardResult, error) {
	var res *ledger.RewardResult
	err := s.apply(ctx, models.EventClaimRewards, caller, func(next *ledger.State) (*effect, error) {
		r, err := s.engine.ClaimRewards(next, caller)
		if err != nil {
			return nil, err
		}
		res = r
		return &effect{
			event:     &models.LedgerEvent{TokenA: r.Token, AmountA: r.Amount.String()},
			transfers: outgoing(caller, r.Token, r.Amount, transfer.ReasonLPReward),
			after: func(context.Context) {
				if s.metrics != nil {
					metrics.Add(s.metrics.RewardsPaid.WithLabelValues(r.Token), r.Amount)
				}
			},
		}, nil
	})
	return res, err
}

// WithdrawProtocolFees pays the accrued protocol fees of token to the admin.
func (s *Service) WithdrawProtocolFees(ctx context.Context, caller, token string) (*big.Int, error) {
	var amount *big.Int
	err := s.apply(ctx, models.EventWithdrawFees, caller, func(next *ledger.State) (*effect, error) {
		a, err := s.engine.WithdrawProtocolFees(next, caller, token)
		if err != nil {
			return nil, err
		}
		amount = a
		return &effect{
			event:     &models.LedgerEvent{TokenA: token, AmountA: a.String()},
			transfers: outgoing(caller, token, a, transfer.ReasonProtocolFees),
		}, nil
	})
	return amount, err
}

func (s *Service) SetPaused(ctx context.Context, caller string, paused bool) error {
	return s.apply(ctx, models.EventSetPaused, caller, func(next *ledger.State) (*effect, error) {
		if err := s.engine.SetPaused(next, caller, paused); err != nil {
			return nil, err
		}
		return &effect{
			event: &models.LedgerEvent{Paused: paused},
			after: func(ctx context.Context) { s.mirrorPause(ctx, paused, caller) },
		}, nil
	})
}

func (s *Service) Quote(tokenIn, tokenOut string, amountIn *big.Int) (*ledger.QuoteResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Quote(s.state, tokenIn, tokenOut, amountIn)
}

func (s *Service) ReserveOf(token string) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ReserveOf(token)
}

func (s *Service) LPBalance(holder string) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LPBalance(holder)
}

func (s *Service) ProtocolFeesOf(token string) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ProtocolFeesOf(token)
}

func (s *Service) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsPaused()
}

// Snapshot returns a deep copy of the committed state.
func (s *Service) Snapshot() *ledger.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Ping checks the state store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
