package web

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"adsb-xgps/internal/aircraft"
)

// AircraftJSON is one row of GET /data. Fields never reported are null.
type AircraftJSON struct {
	Hex        string   `json:"hex"`
	Callsign   *string  `json:"callsign"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	AltFt      *float64 `json:"alt_ft"`
	GsKt       *float64 `json:"gs_kt"`
	Track      *float64 `json:"track"`
	AgeSeconds int64    `json:"age_seconds"`
	Stale      bool     `json:"stale"`
	Tracking   bool     `json:"tracking"`
}

type DataResponse struct {
	Tracked  string         `json:"tracked"`
	Aircraft []AircraftJSON `json:"aircraft"`
}

type TrackRequest struct {
	Callsign string `json:"callsign"`
}

type TrackResponse struct {
	OK      bool   `json:"ok"`
	Tracked string `json:"tracked"`
}

const maxTrackBody = 4 << 10

// BuildData projects a table snapshot and the tracked callsign into the
// /data document. Rows are sorted by hex.
func BuildData(now time.Time, table *aircraft.Table, tracked *aircraft.Tracked) DataResponse {
	entries := table.Snapshot(now)
	resp := DataResponse{
		Tracked:  tracked.Get(),
		Aircraft: make([]AircraftJSON, 0, len(entries)),
	}
	for _, e := range entries {
		st := e.State
		resp.Aircraft = append(resp.Aircraft, AircraftJSON{
			Hex:        e.ICAO,
			Callsign:   st.Callsign,
			Lat:        st.Lat,
			Lon:        st.Lon,
			AltFt:      st.AltFeet,
			GsKt:       st.GroundKt,
			Track:      st.TrackDeg,
			AgeSeconds: int64(e.Age / time.Second),
			Stale:      e.Stale,
			Tracking:   st.Callsign != nil && tracked.Matches(*st.Callsign),
		})
	}
	return resp
}

func (s *Server) data() DataResponse {
	return BuildData(s.deps.Now(), s.deps.Table, s.deps.Tracked)
}

func (s *Server) handleData(w http.ResponseWriter, _ *http.Request) {
	b, err := json.Marshal(s.data())
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

// handleTrack accepts the dashboard's form post or a JSON body. The callsign
// does not have to be in the table yet.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTrackBody)

	if isJSON(r) {
		var req TrackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		callsign := strings.TrimSpace(req.Callsign)
		if callsign == "" {
			http.Error(w, "callsign is required", http.StatusBadRequest)
			return
		}
		s.setTracked(callsign, r)
		writeJSON(w, http.StatusOK, TrackResponse{OK: true, Tracked: s.deps.Tracked.Get()})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	if callsign := strings.TrimSpace(r.PostForm.Get("callsign")); callsign != "" {
		s.setTracked(callsign, r)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) setTracked(callsign string, r *http.Request) {
	prev := s.deps.Tracked.Get()
	s.deps.Tracked.Set(callsign)
	s.log.Info("tracking callsign", "callsign", callsign, "previous", prev, "remote", r.RemoteAddr)
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}
