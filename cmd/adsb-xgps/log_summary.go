package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"adsb-xgps/internal/replay"
	"adsb-xgps/internal/sbs"
)

type captureSummary struct {
	Segments    int
	Lines       int
	MaxDuration time.Duration
	TypeCounts  map[int]int
	Rejected    map[string]int
	Aircraft    int
	Callsigns   []string
}

func summarizeCapture(records []replay.Record) captureSummary {
	s := captureSummary{TypeCounts: map[int]int{}, Rejected: map[string]int{}}
	if len(records) == 0 {
		return s
	}

	origin := time.Duration(0)
	hasLines := false
	segments := 0
	icaos := map[string]struct{}{}
	callsigns := map[string]struct{}{}

	for _, r := range records {
		if r.Start {
			segments++
			origin = r.At
			continue
		}
		hasLines = true

		s.Lines++
		if at := r.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}

		u, err := sbs.Parse(r.Line)
		if err != nil {
			s.Rejected[sbs.Reason(err)]++
			continue
		}
		s.TypeCounts[u.Type]++
		icaos[u.ICAO] = struct{}{}
		if u.Callsign != nil {
			callsigns[strings.ToUpper(*u.Callsign)] = struct{}{}
		}
	}
	if segments == 0 && hasLines {
		segments = 1
	}
	s.Segments = segments
	s.Aircraft = len(icaos)

	for cs := range callsigns {
		s.Callsigns = append(s.Callsigns, cs)
	}
	sort.Strings(s.Callsigns)
	return s
}

func printCaptureSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := replay.Load(path)
	if err != nil {
		return err
	}
	s := summarizeCapture(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "lines: %d\n", s.Lines)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	fmt.Fprintf(w, "aircraft: %d\n", s.Aircraft)

	types := make([]int, 0, len(s.TypeCounts))
	for k := range s.TypeCounts {
		types = append(types, k)
	}
	sort.Ints(types)
	fmt.Fprintf(w, "msg_type_counts:\n")
	for _, k := range types {
		fmt.Fprintf(w, "  %d: %d\n", k, s.TypeCounts[k])
	}

	if len(s.Rejected) > 0 {
		reasons := make([]string, 0, len(s.Rejected))
		for k := range s.Rejected {
			reasons = append(reasons, k)
		}
		sort.Strings(reasons)
		fmt.Fprintf(w, "rejected:\n")
		for _, k := range reasons {
			fmt.Fprintf(w, "  %s: %d\n", k, s.Rejected[k])
		}
	}
	if len(s.Callsigns) > 0 {
		fmt.Fprintf(w, "callsigns: %s\n", strings.Join(s.Callsigns, " "))
	}
	return nil
}
