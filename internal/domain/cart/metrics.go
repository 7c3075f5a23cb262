package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes recorded on the cart.operations counter.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// Metrics records cart operation counters and store latencies. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	operations    metric.Int64Counter
	storeDuration metric.Float64Histogram
}

// NewMetrics registers the cart instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	operations, err := meter.Int64Counter("cart.operations",
		metric.WithDescription("Cart manager operations by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "operations counter")
	}
	storeDuration, err := meter.Float64Histogram("cart.store.duration",
		metric.WithDescription("Duration of cart store calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "store duration histogram")
	}
	return &Metrics{
		operations:    operations,
		storeDuration: storeDuration,
	}, nil
}

func (m *Metrics) operation(ctx context.Context, op Op, outcome string) {
	if m == nil {
		return
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", string(op)),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) storeCall(ctx context.Context, op Op, d time.Duration) {
	if m == nil {
		return
	}
	m.storeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("op", string(op)),
	))
}
