package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.IncLines()
	m.IncLines()
	m.IncParseError("bad_ident")
	m.IncFieldError("altitude")
	m.IncSkipped("no_record")
	m.SetConnected(true)
	m.SetAircraft(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LinesRead))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseErrors.WithLabelValues("bad_ident")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldErrors.WithLabelValues("altitude")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedTicks.WithLabelValues("no_record")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedConnected))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AircraftTotal))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.IncLines()
	m.IncParseError("x")
	m.IncSent()
	m.SetTrackedVisible(true)
	assert.Nil(t, m.Registry())
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.IncSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "adsb_xgps_xgps_datagrams_sent_total 1"))
}
