package agenda

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/studiomerlo/dentsync/pkg/windent"
)

// defaultClock is used when a start time is missing or unparseable.
var defaultClock = Clock{Hour: 8, Minute: 0}

// defaultDuration pads appointments whose end time is absent or does not
// follow the start.
const defaultDuration = 10 // minutes

// NormalizationError reports a record that could not be normalized. Such
// records are excluded and counted, never silently dropped.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize %s: %s", e.Field, e.Reason)
}

// SkippedRecord pairs an unparseable raw record with the reason it was
// excluded.
type SkippedRecord struct {
	Raw windent.RawAppointment
	Err error
}

// DecimalClock converts the legacy decimal-minute encoding into a wall
// clock. The fractional digits are minutes read literally in base 10:
// 18.40 is 18:40, not 18:24. Minutes of 60 or more clamp to 59.
//
// The boolean result is false when the value does not encode a usable time
// (missing, negative, or an impossible hour).
func DecimalClock(v float64) (Clock, bool) {
	if v <= 0 {
		return Clock{}, false
	}
	hours := int(v)
	if hours > 23 {
		return Clock{}, false
	}
	minutes := int(math.Round((v - float64(hours)) * 100))
	if minutes > 59 {
		minutes = 59
	}
	return Clock{Hour: hours, Minute: minutes}, true
}

// Classify applies the record-kind rules in order: no doctor, no studio and
// no patient is a daily note; doctor and studio without a patient is an
// internal service block; everything else is a patient appointment.
func Classify(doctor, studio int, patientName string) Kind {
	if doctor == 0 && studio == 0 && patientName == "" {
		return KindDailyNote
	}
	if doctor > 0 && studio > 0 && patientName == "" {
		return KindService
	}
	return KindPatient
}

// Normalize converts one raw record into its canonical form, resolving the
// patient name through the directory.
func Normalize(raw windent.RawAppointment, names windent.PatientDirectory) (Appointment, error) {
	if raw.Date.IsZero() {
		return Appointment{}, &NormalizationError{Field: "date", Reason: "missing or unparseable"}
	}
	// Keep the date component only; the clock lives in Start/End.
	date := time.Date(raw.Date.Year(), raw.Date.Month(), raw.Date.Day(), 0, 0, 0, 0, time.UTC)

	start, ok := DecimalClock(raw.StartTime)
	if !ok {
		start = defaultClock
	}
	end, ok := DecimalClock(raw.EndTime)
	if !ok || !end.After(start) {
		end = addMinutes(start, defaultDuration)
	}

	doctor := raw.Doctor
	if doctor < 0 {
		doctor = 0
	}
	studio := raw.Studio
	if studio < 0 {
		studio = 0
	}

	patient := names.DisplayName(raw.PatientID)

	return Appointment{
		Date:        date,
		Start:       start,
		End:         end,
		PatientName: patient,
		Studio:      studio,
		Doctor:      doctor,
		Note:        strings.TrimSpace(raw.Note),
		Description: strings.TrimSpace(raw.Description),
		TypeCode:    strings.TrimSpace(raw.TypeCode),
		Kind:        Classify(doctor, studio, patient),
	}, nil
}

// NormalizeAll converts a batch, collecting failures alongside successes so
// the caller can report what was excluded.
func NormalizeAll(raws []windent.RawAppointment, names windent.PatientDirectory) ([]Appointment, []SkippedRecord) {
	appts := make([]Appointment, 0, len(raws))
	var skipped []SkippedRecord
	for _, raw := range raws {
		a, err := Normalize(raw, names)
		if err != nil {
			skipped = append(skipped, SkippedRecord{Raw: raw, Err: err})
			continue
		}
		appts = append(appts, a)
	}
	return appts, skipped
}

// addMinutes advances a clock without crossing midnight; the appointment
// book never runs past 23:59 and the end must stay on the same date.
func addMinutes(c Clock, m int) Clock {
	total := c.TotalMinutes() + m
	if total > 23*60+59 {
		total = 23*60 + 59
	}
	return Clock{Hour: total / 60, Minute: total % 60}
}
