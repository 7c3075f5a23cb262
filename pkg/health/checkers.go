package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is implemented by connection pools.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be pinged.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// MinCountCheck fails while count reports fewer than minimum items, e.g. an
// in-memory index that has not been built yet.
func MinCountCheck(what string, count func() int, minimum int) CheckFunc {
	return func(_ context.Context) error {
		if n := count(); n < minimum {
			return errors.Errorf("%s: have %d, want at least %d", what, n, minimum)
		}
		return nil
	}
}
