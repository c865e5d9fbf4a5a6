package sbs

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// line builds a full 22-field MSG line with the given positional overrides.
func line(msgType int, hex string, set map[int]string) string {
	parts := make([]string, 22)
	parts[0] = "MSG"
	parts[1] = strconv.Itoa(msgType)
	parts[4] = hex
	for idx, v := range set {
		parts[idx] = v
	}
	return strings.Join(parts, ",")
}

func TestParse_Type1Callsign(t *testing.T) {
	u, err := Parse(line(1, "abc123", map[int]string{10: "TEST456 "}))
	require.NoError(t, err)

	assert.Equal(t, "ABC123", u.ICAO)
	assert.Equal(t, 1, u.Type)
	require.NotNil(t, u.Callsign)
	assert.Equal(t, "TEST456", *u.Callsign)
	assert.Nil(t, u.Lat)
	assert.Nil(t, u.Lon)
	assert.Nil(t, u.AltFeet)
}

func TestParse_Type1EmptyCallsignAbsent(t *testing.T) {
	u, err := Parse(line(1, "ABC123", map[int]string{10: "   "}))
	require.NoError(t, err)
	assert.Nil(t, u.Callsign)
	assert.True(t, u.Empty())
}

func TestParse_Type2AllFields(t *testing.T) {
	u, err := Parse(line(2, "ABC123", map[int]string{
		11: "100", 12: "25", 13: "90", 14: "51.47", 15: "-0.46",
	}))
	require.NoError(t, err)

	require.NotNil(t, u.AltFeet)
	require.NotNil(t, u.GroundKt)
	require.NotNil(t, u.TrackDeg)
	require.NotNil(t, u.Lat)
	require.NotNil(t, u.Lon)
	assert.Equal(t, 100.0, *u.AltFeet)
	assert.Equal(t, 25.0, *u.GroundKt)
	assert.Equal(t, 90.0, *u.TrackDeg)
	assert.Equal(t, 51.47, *u.Lat)
	assert.Equal(t, -0.46, *u.Lon)
	assert.Empty(t, u.Malformed)
}

func TestParse_Type3Position(t *testing.T) {
	u, err := Parse(line(3, "ABC123", map[int]string{11: "35000", 14: "50.123", 15: "-6.456"}))
	require.NoError(t, err)

	assert.Equal(t, 35000.0, *u.AltFeet)
	assert.Equal(t, 50.123, *u.Lat)
	assert.Equal(t, -6.456, *u.Lon)
	assert.Nil(t, u.GroundKt)
	assert.Nil(t, u.TrackDeg)
	assert.True(t, u.HasPosition())
}

func TestParse_Type3IgnoresVelocityColumns(t *testing.T) {
	u, err := Parse(line(3, "ABC123", map[int]string{12: "400", 13: "180"}))
	require.NoError(t, err)
	assert.Nil(t, u.GroundKt)
	assert.Nil(t, u.TrackDeg)
}

func TestParse_Type4Velocity(t *testing.T) {
	u, err := Parse(line(4, "ABC123", map[int]string{12: "420", 13: "179"}))
	require.NoError(t, err)

	assert.Equal(t, 420.0, *u.GroundKt)
	assert.Equal(t, 179.0, *u.TrackDeg)
	assert.Nil(t, u.Lat)
	assert.Nil(t, u.AltFeet)
}

func TestParse_AltitudeOnlyTypes(t *testing.T) {
	for _, typ := range []int{5, 7} {
		u, err := Parse(line(typ, "ABC123", map[int]string{11: "37000", 12: "1"}))
		require.NoError(t, err, "type %d", typ)
		require.NotNil(t, u.AltFeet, "type %d", typ)
		assert.Equal(t, 37000.0, *u.AltFeet)
		assert.Nil(t, u.GroundKt, "type %d", typ)
	}
}

func TestParse_IdentityOnlyTypes(t *testing.T) {
	for _, typ := range []int{6, 8} {
		u, err := Parse(line(typ, "ABC123", nil))
		require.NoError(t, err, "type %d", typ)
		assert.Equal(t, "ABC123", u.ICAO)
		assert.True(t, u.Empty(), "type %d", typ)
	}
}

func TestParse_ZeroPositionIsPresent(t *testing.T) {
	u, err := Parse(line(3, "ABC123", map[int]string{14: "0", 15: "0.0"}))
	require.NoError(t, err)
	require.NotNil(t, u.Lat)
	require.NotNil(t, u.Lon)
	assert.Equal(t, 0.0, *u.Lat)
	assert.Equal(t, 0.0, *u.Lon)
}

func TestParse_MalformedFieldDropsOnlyThatField(t *testing.T) {
	u, err := Parse(line(3, "ABC123", map[int]string{11: "notanumber", 14: "50.0", 15: "-6.0"}))
	require.NoError(t, err)

	assert.Nil(t, u.AltFeet)
	assert.Equal(t, 50.0, *u.Lat)
	assert.Equal(t, -6.0, *u.Lon)
	assert.Equal(t, []string{"altitude"}, u.Malformed)
}

func TestParse_NonFiniteNumbersAreMalformed(t *testing.T) {
	u, err := Parse(line(4, "ABC123", map[int]string{12: "NaN", 13: "+Inf"}))
	require.NoError(t, err)
	assert.Nil(t, u.GroundKt)
	assert.Nil(t, u.TrackDeg)
	assert.ElementsMatch(t, []string{"ground_speed", "track"}, u.Malformed)
}

func TestParse_TruncatedLineParsesPresentFields(t *testing.T) {
	u, err := Parse("MSG,3,1,1,ABC123,1,,,,,,12000,,,37.5")
	require.NoError(t, err)
	assert.Equal(t, 12000.0, *u.AltFeet)
	assert.Equal(t, 37.5, *u.Lat)
	assert.Nil(t, u.Lon)

	u, err = Parse("MSG,1,1,1,ABC123")
	require.NoError(t, err)
	assert.Nil(t, u.Callsign)
}

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{name: "Empty", in: "", want: ErrEmptyLine},
		{name: "Whitespace", in: " \r\n", want: ErrEmptyLine},
		{name: "StatusRecord", in: "STA,,,,ABC123,,,,,,,,,,,,,,,,,", want: ErrNotTransmission},
		{name: "NoType", in: "MSG", want: ErrBadMessageType},
		{name: "GarbageType", in: "MSG,X,,,ABC123,,,,,,,,,,,,,,,,,", want: ErrBadMessageType},
		{name: "TypeZero", in: line(0, "ABC123", nil), want: ErrUnknownMessageType},
		{name: "TypeNine", in: line(9, "ABC123", nil), want: ErrUnknownMessageType},
		{name: "MissingIdent", in: line(1, "", map[int]string{10: "TEST"}), want: ErrMissingIdentity},
		{name: "TruncatedBeforeIdent", in: "MSG,3,1,1", want: ErrMissingIdentity},
		{name: "ShortIdent", in: line(1, "ABC12", nil), want: ErrBadIdentity},
		{name: "NonHexIdent", in: line(1, "ABCXYZ", nil), want: ErrBadIdentity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "err=%v want %v", err, tc.want)
			assert.True(t, errors.Is(err, ErrParse))
		})
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "empty", Reason(ErrEmptyLine))
	_, err := Parse(line(9, "ABC123", nil))
	assert.Equal(t, "unknown_type", Reason(err))
	assert.Equal(t, "other", Reason(errors.New("x")))
}

func TestNormalizeICAO(t *testing.T) {
	got, ok := NormalizeICAO(" a1b2c3 ")
	assert.True(t, ok)
	assert.Equal(t, "A1B2C3", got)

	_, ok = NormalizeICAO("0xA1B2")
	assert.False(t, ok)
}
