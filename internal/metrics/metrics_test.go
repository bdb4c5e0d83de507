package metrics

import (
	"testing"
	"time"

	"github.com/keeper-security/ksm-profile/internal/storage"
	"github.com/keeper-security/ksm-profile/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachCountsCommittedChanges(t *testing.T) {
	m := New(prometheus.NewRegistry())
	p := profile.New(storage.NewMemoryBackend())
	m.Attach(p)

	require.NoError(t, p.SetValue("A", "x", 1))
	require.NoError(t, p.SetValue("A", "x", 1))
	require.NoError(t, p.RemoveSection("A"))
	require.NoError(t, p.SetReadOnly(true))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChangesTotal.WithLabelValues("SetValue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChangesTotal.WithLabelValues("RemoveSection")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChangesTotal.WithLabelValues("ReadOnly")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ChangesTotal.WithLabelValues("Name")))
}

func TestCountCancels(t *testing.T) {
	m := New(prometheus.NewRegistry())
	p := profile.New(storage.NewMemoryBackend())
	m.Attach(p)

	p.OnChanging(m.CountCancels(func(_ *profile.Profile, e *profile.ChangingArgs) error {
		if e.Section() == "Frozen" {
			e.Cancel = true
		}
		return nil
	}))

	require.NoError(t, p.SetValue("Frozen", "x", 1))
	require.NoError(t, p.SetValue("Open", "x", 1))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CancelledTotal.WithLabelValues("SetValue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChangesTotal.WithLabelValues("SetValue")))
}

func TestObserveDataSet(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveExport(time.Now())
	m.ObserveImport(time.Now())
	m.ObserveImport(time.Now())

	assert.Equal(t, 2, testutil.CollectAndCount(m.DataSetDuration))

	count, err := testutil.GatherAndCount(reg, "ksm_profile_dataset_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
