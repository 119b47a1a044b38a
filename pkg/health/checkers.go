package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is a dependency that can be probed, such as a pgxpool.Pool or the
// AMQP event mirror.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes p.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck fails when the process runs more than threshold
// goroutines.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// BacklogCheck fails when count reports more than threshold items, for
// example scheduled order timers piling up.
func BacklogCheck(what string, count func() int, threshold int) CheckFunc {
	return func(context.Context) error {
		if n := count(); n > threshold {
			return errors.Errorf("%s backlog %d exceeds threshold %d", what, n, threshold)
		}
		return nil
	}
}
