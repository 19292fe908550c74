// Package transfer moves tokens out of the pool once the ledger has booked
// the movement. Inbound payments are assumed to have arrived before an
// operation is submitted.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/sirupsen/logrus"
)

// Reason says which operation owes the transfer.
type Reason string

const (
	ReasonSwapOutput   Reason = "swap_output"
	ReasonLiquidityOut Reason = "remove_liquidity"
	ReasonLPReward     Reason = "lp_reward"
	ReasonProtocolFees Reason = "protocol_fees"
)

var ErrInvalidTransfer = errors.New("invalid transfer")

// Transfer is one outgoing payment.
type Transfer struct {
	EventID string
	To      string
	Token   string
	Amount  *big.Int
	Reason  Reason
}

func (t Transfer) Validate() error {
	if t.To == "" || t.Token == "" {
		return fmt.Errorf("%w: recipient and token are required", ErrInvalidTransfer)
	}
	if t.Amount == nil || t.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransfer)
	}
	return nil
}

// Transferer executes outgoing transfers.
type Transferer interface {
	Transfer(ctx context.Context, t Transfer) error
}

// LogTransferer records transfers through logrus instead of moving funds.
// It keeps the executed transfers for inspection.
type LogTransferer struct {
	logger *logrus.Logger

	mu   sync.Mutex
	sent []Transfer
}

func NewLogTransferer(logger *logrus.Logger) *LogTransferer {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogTransferer{logger: logger}
}

func (l *LogTransferer) Transfer(ctx context.Context, t Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}

	t.Amount = new(big.Int).Set(t.Amount)
	l.mu.Lock()
	l.sent = append(l.sent, t)
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"event_id": t.EventID,
		"to":       t.To,
		"token":    t.Token,
		"amount":   t.Amount.String(),
		"reason":   t.Reason,
	}).Info("transfer executed")
	return nil
}

// Sent returns a copy of the transfers executed so far.
func (l *LogTransferer) Sent() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transfer, len(l.sent))
	copy(out, l.sent)
	return out
}
