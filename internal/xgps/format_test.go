package xgps

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitConversions(t *testing.T) {
	p := FromFeetKnots(0, 0, 1000, 0, 100)
	assert.InDelta(t, 304.8, p.AltM, 1e-9)
	assert.InDelta(t, 51.4444, p.GroundMS, 1e-9)

	p = FromFeetKnots(0, 0, 10000, 0, 0)
	assert.InDelta(t, 3048.0, p.AltM, 1e-9)
}

func TestFormat_ExactPrecision(t *testing.T) {
	got := Format("dev", FromFeetKnots(37.5, -122.3, 1000, 90, 100))
	assert.Equal(t, "XGPSdev,-122.3,37.5,304.8,90.00,51.4", got)
}

func TestFormat_FullPrecisionCoordinates(t *testing.T) {
	got := Format("adsb_xgps", Position{LonDeg: -80.123456789, LatDeg: 34.55, AltM: 1200.06, TrackDeg: 359.054, GroundMS: 55.64})
	assert.Equal(t, "XGPSadsb_xgps,-80.123456789,34.55,1200.1,359.05,55.6", got)
}

func TestFormat_ZeroValues(t *testing.T) {
	assert.Equal(t, "XGPSx,0,0,0.0,0.00,0.0", Format("x", Position{}))
}

func TestFormat_RoundTrips(t *testing.T) {
	p := FromFeetKnots(34.55, -80.11, 3937, 359.05, 108.089)
	msg := Format("adsb_xgps", p)

	rest, ok := strings.CutPrefix(msg, "XGPSadsb_xgps,")
	require.True(t, ok)
	parts := strings.Split(rest, ",")
	require.Len(t, parts, 5)

	want := []float64{-80.11, 34.55, 1200.0, 359.05, 55.6}
	tol := []float64{0, 0, 0.2, 0.005, 0.1}
	for i, s := range parts {
		v, err := strconv.ParseFloat(s, 64)
		require.NoError(t, err)
		assert.InDelta(t, want[i], v, tol[i]+1e-9, "field %d", i)
	}
}
