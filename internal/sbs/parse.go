package sbs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BaseStation CSV layout, 0-based field indices.
//
//	MSG,<type>,<session>,<aircraft>,<hex>,<flight>,<date gen>,<time gen>,
//	<date log>,<time log>,<callsign>,<alt>,<gs>,<track>,<lat>,<lon>,
//	<vrate>,<squawk>,<alert>,<emergency>,<spi>,<on ground>
const (
	fieldRecordType = 0
	fieldMsgType    = 1
	fieldHexIdent   = 4
	fieldCallsign   = 10
	fieldAltitude   = 11
	fieldGroundKt   = 12
	fieldTrack      = 13
	fieldLat        = 14
	fieldLon        = 15
)

// ErrParse is wrapped by every error Parse returns.
var ErrParse = errors.New("sbs parse error")

var (
	ErrEmptyLine          = fmt.Errorf("%w: empty line", ErrParse)
	ErrNotTransmission    = fmt.Errorf("%w: not a MSG record", ErrParse)
	ErrBadMessageType     = fmt.Errorf("%w: malformed message type", ErrParse)
	ErrUnknownMessageType = fmt.Errorf("%w: unknown message type", ErrParse)
	ErrMissingIdentity    = fmt.Errorf("%w: missing hex ident", ErrParse)
	ErrBadIdentity        = fmt.Errorf("%w: malformed hex ident", ErrParse)
)

// Reason returns a short label for a parse error, suitable for metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyLine):
		return "empty"
	case errors.Is(err, ErrNotTransmission):
		return "not_msg"
	case errors.Is(err, ErrBadMessageType):
		return "bad_type"
	case errors.Is(err, ErrUnknownMessageType):
		return "unknown_type"
	case errors.Is(err, ErrMissingIdentity):
		return "missing_ident"
	case errors.Is(err, ErrBadIdentity):
		return "bad_ident"
	default:
		return "other"
	}
}

// Parse decodes a single BaseStation line. It never touches shared state.
//
// Optional fields that are empty are left nil. Optional numeric fields that
// fail to parse are also left nil and their names are listed in
// Update.Malformed; they never fail the whole line.
func Parse(line string) (Update, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Update{}, ErrEmptyLine
	}

	fields := strings.Split(line, ",")
	if strings.TrimSpace(fields[fieldRecordType]) != "MSG" {
		return Update{}, ErrNotTransmission
	}
	if len(fields) <= fieldMsgType {
		return Update{}, ErrBadMessageType
	}

	msgType, err := strconv.Atoi(strings.TrimSpace(fields[fieldMsgType]))
	if err != nil {
		return Update{}, fmt.Errorf("%w %q", ErrBadMessageType, fields[fieldMsgType])
	}
	if msgType < 1 || msgType > 8 {
		return Update{}, fmt.Errorf("%w %d", ErrUnknownMessageType, msgType)
	}

	if len(fields) <= fieldHexIdent || strings.TrimSpace(fields[fieldHexIdent]) == "" {
		return Update{}, ErrMissingIdentity
	}
	icao, ok := NormalizeICAO(fields[fieldHexIdent])
	if !ok {
		return Update{}, fmt.Errorf("%w %q", ErrBadIdentity, fields[fieldHexIdent])
	}

	p := fieldReader{fields: fields}
	u := Update{ICAO: icao, Type: msgType}

	switch msgType {
	case 1:
		u.Callsign = p.text(fieldCallsign)
	case 2:
		u.AltFeet = p.number(fieldAltitude, "altitude")
		u.GroundKt = p.number(fieldGroundKt, "ground_speed")
		u.TrackDeg = p.number(fieldTrack, "track")
		u.Lat = p.number(fieldLat, "latitude")
		u.Lon = p.number(fieldLon, "longitude")
	case 3:
		u.AltFeet = p.number(fieldAltitude, "altitude")
		u.Lat = p.number(fieldLat, "latitude")
		u.Lon = p.number(fieldLon, "longitude")
	case 4:
		u.GroundKt = p.number(fieldGroundKt, "ground_speed")
		u.TrackDeg = p.number(fieldTrack, "track")
	case 5, 7:
		u.AltFeet = p.number(fieldAltitude, "altitude")
	}
	u.Malformed = p.malformed

	return u, nil
}

// NormalizeICAO upper-cases s and checks that it is a 24-bit hex address.
func NormalizeICAO(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 6 {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return "", false
		}
	}
	return s, true
}

type fieldReader struct {
	fields    []string
	malformed []string
}

func (r *fieldReader) raw(idx int) string {
	if idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func (r *fieldReader) text(idx int) *string {
	s := r.raw(idx)
	if s == "" {
		return nil
	}
	return &s
}

func (r *fieldReader) number(idx int, name string) *float64 {
	s := r.raw(idx)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		r.malformed = append(r.malformed, name)
		return nil
	}
	return &v
}
