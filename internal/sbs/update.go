package sbs

// Update is the result of parsing one line. Nil fields were not present in
// the line (or were malformed) and must not overwrite stored values.
type Update struct {
	ICAO string
	Type int

	Callsign *string
	Lat      *float64
	Lon      *float64
	AltFeet  *float64
	GroundKt *float64
	TrackDeg *float64

	// Malformed lists optional fields that were present but unparsable.
	Malformed []string
}

// HasPosition reports whether both latitude and longitude are present.
func (u Update) HasPosition() bool {
	return u.Lat != nil && u.Lon != nil
}

// Empty reports whether the update carries nothing beyond the identity.
func (u Update) Empty() bool {
	return u.Callsign == nil && u.Lat == nil && u.Lon == nil &&
		u.AltFeet == nil && u.GroundKt == nil && u.TrackDeg == nil
}
