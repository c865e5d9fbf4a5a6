// Package debugprint periodically dumps the aircraft table to a terminal.
package debugprint

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"adsb-xgps/internal/aircraft"
)

type Printer struct {
	table    *aircraft.Table
	tracked  *aircraft.Tracked
	out      io.Writer
	interval time.Duration

	header  lipgloss.Style
	row     lipgloss.Style
	stale   lipgloss.Style
	current lipgloss.Style
}

func New(table *aircraft.Table, tracked *aircraft.Tracked, out io.Writer, interval time.Duration) *Printer {
	if interval <= 0 {
		interval = time.Second
	}
	if tracked == nil {
		tracked = aircraft.NewTracked("")
	}
	r := lipgloss.NewRenderer(out)
	return &Printer{
		table:    table,
		tracked:  tracked,
		out:      out,
		interval: interval,
		header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		row:      r.NewStyle().Foreground(lipgloss.Color("255")),
		stale:    r.NewStyle().Foreground(lipgloss.Color("240")),
		current:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
	}
}

// Run prints the table every interval until ctx is cancelled.
func (p *Printer) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if s := p.Render(now); s != "" {
				_, _ = io.WriteString(p.out, s)
			}
		}
	}
}

// Render formats every record; it returns "" when the table is empty.
func (p *Printer) Render(now time.Time) string {
	entries := p.table.Snapshot(now)
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(p.header.Render(fmt.Sprintf("--- Aircraft (%d) ---", len(entries))))
	b.WriteByte('\n')
	for _, e := range entries {
		st := e.State
		cs := st.CallsignOr("-")
		line := fmt.Sprintf("  %s %8s  %10s %11s  %7s %5s %4s  %ds ago",
			e.ICAO,
			cs,
			orDash(st.Lat, "%.5f"),
			orDash(st.Lon, "%.5f"),
			orDash(st.AltFeet, "%.0fft"),
			orDash(st.GroundKt, "%.0fkt"),
			orDash(st.TrackDeg, "%.0f°"),
			int64(e.Age/time.Second),
		)
		style := p.row
		switch {
		case st.Callsign != nil && p.tracked.Matches(cs):
			style = p.current
		case e.Stale:
			style = p.stale
		}
		b.WriteString(style.Render(line))
		b.WriteByte('\n')
	}
	return b.String()
}

func orDash(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
