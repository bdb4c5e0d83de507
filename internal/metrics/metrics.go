package metrics

import (
	"time"

	"github.com/keeper-security/ksm-profile/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for profiles.
// Tracks committed and vetoed changes and data set transfer durations.
type Metrics struct {
	ChangesTotal    *prometheus.CounterVec
	CancelledTotal  *prometheus.CounterVec
	DataSetDuration *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ksm_profile_changes_total",
			Help: "Total number of committed profile changes",
		}, []string{"type"}),
		CancelledTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ksm_profile_changes_cancelled_total",
			Help: "Total number of profile changes vetoed by a handler",
		}, []string{"type"}),
		DataSetDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ksm_profile_dataset_duration_seconds",
			Help:    "Duration of data set export and import operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// Attach counts every committed change of p.
func (m *Metrics) Attach(p *profile.Profile) {
	p.OnChanged(func(_ *profile.Profile, e profile.ChangedArgs) error {
		m.ChangesTotal.WithLabelValues(e.ChangeType().String()).Inc()
		return nil
	})
}

// CountCancels wraps a Changing handler so that every veto it issues is
// counted. Handlers after a veto never run, so the counting has to happen
// around the handler that cancels.
func (m *Metrics) CountCancels(h profile.ChangingHandler) profile.ChangingHandler {
	return func(p *profile.Profile, e *profile.ChangingArgs) error {
		before := e.Cancel
		err := h(p, e)
		if e.Cancel && !before {
			m.CancelledTotal.WithLabelValues(e.ChangeType().String()).Inc()
		}
		return err
	}
}

// ObserveExport records the duration of a data set export.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveExport(start time.Time) {
	m.DataSetDuration.WithLabelValues("export").Observe(time.Since(start).Seconds())
}

// ObserveImport records the duration of a data set import.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveImport(start time.Time) {
	m.DataSetDuration.WithLabelValues("import").Observe(time.Since(start).Seconds())
}
