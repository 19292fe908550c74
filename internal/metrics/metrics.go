package metrics

import (
	"math/big"
	"time"

	"github.com/aman-zulfiqar/swap-ledger/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "ledger"

	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds the Prometheus collectors for the pool
type Metrics struct {
	// Operation metrics
	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec

	// Swap metrics
	SwapVolume    *prometheus.CounterVec
	FeesCollected *prometheus.CounterVec

	// Liquidity metrics
	LiquidityAdded   *prometheus.CounterVec
	LiquidityRemoved *prometheus.CounterVec
	RewardsPaid      *prometheus.CounterVec

	// State gauges, refreshed after every commit
	Reserves      *prometheus.GaugeVec
	LPTokenSupply prometheus.Gauge
	Paused        prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to keep registrations isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by kind and result",
		}, []string{"op", "result"}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Time spent committing a ledger operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		SwapVolume: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "volume_total",
			Help:      "Swap input volume in base units",
		}, []string{"token"}),
		FeesCollected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "fees_collected_total",
			Help:      "Swap fees collected in base units",
		}, []string{"token", "kind"}),

		LiquidityAdded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidity",
			Name:      "added_total",
			Help:      "Liquidity added in base units",
		}, []string{"token"}),
		LiquidityRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidity",
			Name:      "removed_total",
			Help:      "Liquidity removed in base units",
		}, []string{"token"}),
		RewardsPaid: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidity",
			Name:      "rewards_paid_total",
			Help:      "LP rewards paid in base units",
		}, []string{"token"}),

		Reserves: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserve",
			Help:      "Current reserve per token in base units",
		}, []string{"token"}),
		LPTokenSupply: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lp_supply",
			Help:      "Total LP shares outstanding",
		}),
		Paused: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paused",
			Help:      "1 while swaps are paused",
		}),
	}
}

// ObserveOperation records one operation outcome. A nil receiver is a no-op
// so callers can run without metrics.
func (m *Metrics) ObserveOperation(op, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, result).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(took.Seconds())
}

// ObserveState refreshes the gauges from a committed state.
func (m *Metrics) ObserveState(s *ledger.State) {
	if m == nil {
		return
	}
	for token, v := range s.Reserves {
		m.Reserves.WithLabelValues(token).Set(Float(v))
	}
	m.LPTokenSupply.Set(Float(s.TotalLPSupply))
	if s.Paused {
		m.Paused.Set(1)
	} else {
		m.Paused.Set(0)
	}
}

// Add increments c by v if v is positive.
func Add(c prometheus.Counter, v *big.Int) {
	if v != nil && v.Sign() > 0 {
		c.Add(Float(v))
	}
}

// Float converts a base-unit amount for export. Values above 2^53 lose
// precision.
func Float(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
