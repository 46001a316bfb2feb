package camera

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ironwatch/site/internal/camera"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	transitions metric.Int64Counter
	duration    metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	m := meter()

	transitions, err := m.Int64Counter(
		"camera.transitions",
		metric.WithDescription("Camera transitions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	duration, err := m.Float64Histogram(
		"camera.transition.duration",
		metric.WithDescription("Wall time of completed camera transitions"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &metrics{transitions: transitions, duration: duration}, nil
}

func (m *metrics) outcome(name string) {
	m.transitions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", name)))
}
