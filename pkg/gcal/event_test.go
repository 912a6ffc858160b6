package gcal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiomerlo/dentsync/pkg/agenda"
)

func TestColorID(t *testing.T) {
	colors := map[string]string{"V": "6", "U": "1"}
	assert.Equal(t, "6", ColorID("V", colors))
	assert.Equal(t, DefaultColorID, ColorID("Z", colors))
	assert.Equal(t, DefaultColorID, ColorID("", colors))
}

func TestEvent(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	a := agenda.Appointment{
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Start:       agenda.Clock{Hour: 9, Minute: 30},
		End:         agenda.Clock{Hour: 10, Minute: 0},
		PatientName: "Rossi Mario",
		Studio:      1,
		Note:        "controllo",
		TypeCode:    "V",
		Kind:        agenda.KindPatient,
	}

	ev := Event(a, map[string]string{"V": "6"}, loc)

	assert.Equal(t, "Rossi Mario", ev.Summary)
	assert.Equal(t, "controllo", ev.Description)
	assert.Equal(t, "6", ev.ColorId)
	assert.Equal(t, "2026-03-10T09:30:00+01:00", ev.Start.DateTime)
	assert.Equal(t, "2026-03-10T10:00:00+01:00", ev.End.DateTime)
	assert.Equal(t, "Europe/Rome", ev.Start.TimeZone)
	assert.Equal(t, "Europe/Rome", ev.End.TimeZone)
}
