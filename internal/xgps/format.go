// Package xgps turns the tracked aircraft into XGPS sentences, the
// single-line UDP position format understood by ForeFlight, Garmin Pilot and
// other EFB apps as a "simulator GPS".
package xgps

import (
	"strconv"
	"strings"
)

const (
	FeetToMeters = 0.3048
	KnotsToMPS   = 0.514444

	// DefaultPort is the UDP port EFB apps listen on for XGPS.
	DefaultPort = 49002
	// DefaultDeviceID names this bridge in the receiving app.
	DefaultDeviceID = "adsb_xgps"
)

// Position is one fix in the units the sentence carries.
type Position struct {
	LonDeg   float64
	LatDeg   float64
	AltM     float64
	TrackDeg float64
	GroundMS float64
}

// FromFeetKnots builds a Position from feed units.
func FromFeetKnots(lat, lon, altFeet, trackDeg, groundKt float64) Position {
	return Position{
		LonDeg:   lon,
		LatDeg:   lat,
		AltM:     altFeet * FeetToMeters,
		TrackDeg: trackDeg,
		GroundMS: groundKt * KnotsToMPS,
	}
}

// Format renders XGPS<device>,<lon>,<lat>,<alt m .1>,<track .2>,<gs m/s .1>.
// Longitude and latitude use the shortest representation that round-trips.
func Format(deviceID string, p Position) string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString("XGPS")
	b.WriteString(deviceID)
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(p.LonDeg, 'f', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(p.LatDeg, 'f', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(p.AltM, 'f', 1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(p.TrackDeg, 'f', 2, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(p.GroundMS, 'f', 1, 64))
	return b.String()
}
