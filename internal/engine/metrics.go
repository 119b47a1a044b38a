package engine

import (
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	generated        metric.Int64Counter
	served           metric.Int64Counter
	expired          metric.Int64Counter
	gameOvers        metric.Int64Counter
	discoveries      metric.Int64Counter
	callbackFailures metric.Int64Counter
}

func newMetrics(meter metric.Meter) (metrics, error) {
	var (
		m   metrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.generated, "kitchen.orders.generated", "Orders generated"},
		{&m.served, "kitchen.orders.served", "Orders served before their deadline"},
		{&m.expired, "kitchen.orders.expired", "Orders that expired"},
		{&m.gameOvers, "kitchen.sessions.game_over", "Sessions ended by game over"},
		{&m.discoveries, "kitchen.recipes.discovered", "New recipe discoveries"},
		{&m.callbackFailures, "kitchen.callbacks.failed", "Timer callback steps that exhausted their retries"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return metrics{}, err
		}
	}
	return m, nil
}
