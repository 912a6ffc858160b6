// Package export dumps fully-formed calendar event bodies to a file so the
// normalizer and router can be inspected without touching the network.
package export

import (
	"encoding/json"
	"os"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/studiomerlo/dentsync/pkg/agenda"
	"github.com/studiomerlo/dentsync/pkg/gcal"
	"github.com/studiomerlo/dentsync/pkg/router"
)

// Entry pairs an event body with the calendar the router would send it to.
type Entry struct {
	CalendarID string          `json:"calendar_id"`
	Event      *calendar.Event `json:"event"`
}

// Events builds the export entries. Appointments that would be rejected by
// the executor's validation (patient entries with nothing to display) are
// returned separately so the dump reflects exactly what a sync would send.
func Events(appts []agenda.Appointment, rt router.Router, colors map[string]string, loc *time.Location) (entries []Entry, invalid []agenda.Appointment) {
	for _, a := range appts {
		if a.Kind == agenda.KindPatient && a.Summary() == "" {
			invalid = append(invalid, a)
			continue
		}
		entries = append(entries, Entry{
			CalendarID: rt.CalendarID(a.Studio),
			Event:      gcal.Event(a, colors, loc),
		})
	}
	return entries, invalid
}

// Write dumps the entries as indented JSON.
func Write(path string, entries []Entry) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
