package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/optix-bridge/optix-bridge/internal/errors"
)

// ErrorMetrics counts EnhancedErrors by component and category.
type ErrorMetrics struct {
	Errors *prometheus.CounterVec
}

// NewErrorMetrics creates and registers error metrics.
func NewErrorMetrics(registry prometheus.Registerer) (*ErrorMetrics, error) {
	m := &ErrorMetrics{
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Errors built by components, by component and category",
		}, []string{"component", "category"}),
	}
	if err := registry.Register(m.Errors); err != nil {
		return nil, fmt.Errorf("failed to register error metrics: %w", err)
	}
	return m, nil
}

// Hook returns an errors.ErrorHook that counts every built error.
func (m *ErrorMetrics) Hook() errors.ErrorHook {
	return func(ee *errors.EnhancedError) {
		m.Errors.WithLabelValues(ee.GetComponent(), ee.GetCategory()).Inc()
	}
}
