package login

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/mpapenbr/itslogin/log"
)

type loginMetrics struct {
	attempts      metric.Int64Counter
	outcomes      metric.Int64Counter
	configFetches metric.Int64Counter
	duration      metric.Float64Histogram
}

//nolint:whitespace // editor/linter issue
func newLoginMetrics(meter metric.Meter, l *log.Logger) *loginMetrics {
	fallback := noop.NewMeterProvider().Meter("itslogin")
	register := func(name string, create func(m metric.Meter) error) {
		if err := create(meter); err != nil {
			l.Warn("failed to register metric",
				log.String("metric", name),
				log.ErrorField(err))
			//nolint:errcheck // noop meter never fails
			create(fallback)
		}
	}
	ret := &loginMetrics{}
	register("itslogin.login.attempts", func(m metric.Meter) (err error) {
		ret.attempts, err = m.Int64Counter("itslogin.login.attempts",
			metric.WithDescription("Number of started login attempts"),
			metric.WithUnit("{count}"))
		return err
	})
	register("itslogin.login.outcomes", func(m metric.Meter) (err error) {
		ret.outcomes, err = m.Int64Counter("itslogin.login.outcomes",
			metric.WithDescription("Number of finished login attempts by result"),
			metric.WithUnit("{count}"))
		return err
	})
	register("itslogin.config.fetches", func(m metric.Meter) (err error) {
		ret.configFetches, err = m.Int64Counter("itslogin.config.fetches",
			metric.WithDescription("Number of client config requests"),
			metric.WithUnit("{count}"))
		return err
	})
	register("itslogin.login.duration", func(m metric.Meter) (err error) {
		ret.duration, err = m.Float64Histogram("itslogin.login.duration",
			metric.WithDescription("Duration of login attempts"),
			metric.WithUnit("s"))
		return err
	})
	return ret
}

func (m *loginMetrics) attemptStarted(ctx context.Context, role string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}

//nolint:whitespace // editor/linter issue
func (m *loginMetrics) attemptFinished(
	ctx context.Context,
	role, result string,
	seconds float64,
) {
	attrs := metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("result", result))
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, seconds, attrs)
}

func (m *loginMetrics) configFetched(ctx context.Context, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.configFetches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
