package telemetry

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/pkgview/internal/engine"
	"github.com/grovetools/pkgview/pkg/models"
)

func TestObserveRefreshCountsByKindAndOutcome(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveRefresh(engine.Observation{Trigger: engine.Trigger{Kind: engine.FilterChanged}, Outcome: engine.Success, Duration: 30 * time.Millisecond})
	m.ObserveRefresh(engine.Observation{Trigger: engine.Trigger{Kind: engine.FilterChanged}, Outcome: engine.NoOp, Reason: "superseded"})
	m.ObserveRefresh(engine.Observation{Trigger: engine.Trigger{Kind: engine.FilterChanged}, Outcome: engine.Success})
	m.ObserveRefresh(engine.Observation{
		Trigger:  engine.Trigger{Kind: engine.ExplicitSearch},
		Outcome:  engine.Success,
		Duration: time.Second,
		Err:      errors.New("search service unavailable"),
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.triggers.WithLabelValues("FilterChanged", "Success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggers.WithLabelValues("FilterChanged", "NoOp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loadErrors.WithLabelValues("ExplicitSearch")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.loads))
}

func TestCounterGaugesSampleOnScrape(t *testing.T) {
	counts := models.Counts{Updates: 2, Vulnerable: 1}
	m := NewMetrics(func() models.Counts { return counts })

	expected := `
# HELP pkgview_counter_value Current derived counter values.
# TYPE pkgview_counter_value gauge
pkgview_counter_value{counter="consolidate"} 0
pkgview_counter_value{counter="deprecated"} 0
pkgview_counter_value{counter="updates"} 2
pkgview_counter_value{counter="vulnerable"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "pkgview_counter_value"))

	counts.Consolidate = 4
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `pkgview_counter_value{counter="consolidate"} 4`)
}
