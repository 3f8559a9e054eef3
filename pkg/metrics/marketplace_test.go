package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMarketplaceMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMarketplaceMetrics(reg)

	m.IncOrderCreated("checkout")
	m.IncOrderCreated("checkout")
	m.IncOrderTransition("NewOrder", "Confirmed")
	m.IncOrderRejection("BELOW_MINIMUM")
	m.IncCartConflict("stall_conflict")
	m.IncCascadeDeletion("stall", "deleted")
	m.AddCascadeRows(map[string]int64{"orders": 2, "products": 3, "reviews": 0})
	m.IncFileCleanupFailure("io")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "stallmarket_orders_created_total", "origin", "checkout")
	require.NoError(t, err)
	require.Equal(t, float64(2), got)

	got, err = fetchCounterValue(mfs, "stallmarket_order_transitions_total", "to", "Confirmed")
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "stallmarket_cascade_rows_deleted_total", "kind", "products")
	require.NoError(t, err)
	require.Equal(t, float64(3), got)

	_, err = fetchCounterValue(mfs, "stallmarket_cascade_rows_deleted_total", "kind", "reviews")
	require.Error(t, err)

	got, err = fetchCounterValue(mfs, "stallmarket_file_cleanup_failures_total", "reason", "io")
	require.NoError(t, err)
	require.Equal(t, float64(1), got)
}

func TestMarketplaceMetricsNoopWithoutRegisterer(t *testing.T) {
	m := NewMarketplaceMetrics(nil)
	m.IncOrderCreated("direct")
	m.AddCascadeRows(map[string]int64{"orders": 1})

	var nilMetrics *MarketplaceMetrics
	nilMetrics.IncFileCleanupFailure("io")
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTPMetrics(reg)
	h.Observe("GET", "/api/v1/stalls", 200, 15*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "stallmarket_http_requests_total", "route", "/api/v1/stalls")
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	sum, err := fetchHistogramSum(mfs, "stallmarket_http_request_duration_seconds", "method", "GET")
	require.NoError(t, err)
	require.Greater(t, sum, 0.0)
}
