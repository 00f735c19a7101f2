package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherCounter(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0.0
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.ObserveCycle(time.Second, nil)
	m.ObserveCycle(time.Second, errors.New("rpc down"))
	m.SetMonitoredUsers(3)
	m.ObserveRebalance("repay", "submitted", 2)
	m.ObserveQuote(false)
	m.ObserveQuote(true)
	m.IncDryRunFailure("flashloan")

	assert.Equal(t, 2.0, gatherCounter(t, m, "autorepay_cycles_total"))
	assert.Equal(t, 1.0, gatherCounter(t, m, "autorepay_cycle_failures_total"))
	assert.Equal(t, 3.0, gatherCounter(t, m, "autorepay_monitored_users"))
	assert.Equal(t, 1.0, gatherCounter(t, m, "autorepay_rebalances_total"))
	assert.Equal(t, 2.0, gatherCounter(t, m, "autorepay_quotes_total"))
	assert.Equal(t, 1.0, gatherCounter(t, m, "autorepay_dry_run_failures_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCycle(time.Second, nil)
	m.SetMonitoredUsers(1)
	m.AddCandidates("borrow", 1)
	m.ObserveRebalance("borrow", "abandoned", 4)
	m.ObserveQuote(true)
	m.IncDryRunFailure("direct")
	m.SetLastScannedBlock(10)
	assert.Nil(t, m.Registry())
}
