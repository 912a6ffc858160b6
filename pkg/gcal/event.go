package gcal

import (
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/studiomerlo/dentsync/pkg/agenda"
)

// DefaultColorID is used for type codes the color map does not know.
const DefaultColorID = "1"

// ColorID looks up the Google colorId for an appointment type code.
func ColorID(typeCode string, colors map[string]string) string {
	if id, ok := colors[typeCode]; ok && id != "" {
		return id
	}
	return DefaultColorID
}

// Event builds the calendar event body for a canonical appointment. The
// start and end carry an explicit timezone so the calendar renders the
// practice's wall-clock times regardless of the viewer's zone.
func Event(a agenda.Appointment, colors map[string]string, loc *time.Location) *calendar.Event {
	return &calendar.Event{
		Summary:     a.Summary(),
		Description: a.Body(),
		ColorId:     ColorID(a.TypeCode, colors),
		Start: &calendar.EventDateTime{
			DateTime: a.StartAt(loc).Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: a.EndAt(loc).Format(time.RFC3339),
			TimeZone: loc.String(),
		},
	}
}
