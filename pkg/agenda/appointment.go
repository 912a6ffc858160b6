// Package agenda turns raw windent records into canonical appointments and
// derives the identity and content hash used for idempotent syncing.
package agenda

import (
	"fmt"
	"time"
)

// Kind classifies an appointment record.
type Kind int

const (
	// KindPatient is a standard patient appointment.
	KindPatient Kind = iota
	// KindDailyNote is an administrative note for the day (no doctor, no
	// studio, no patient).
	KindDailyNote
	// KindService is an internal time block (doctor and studio set, no
	// patient).
	KindService
)

func (k Kind) String() string {
	switch k {
	case KindDailyNote:
		return "daily_note"
	case KindService:
		return "service"
	default:
		return "patient"
	}
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// TotalMinutes returns the clock as minutes since midnight.
func (c Clock) TotalMinutes() int {
	return c.Hour*60 + c.Minute
}

// After reports whether c is strictly later than other.
func (c Clock) After(other Clock) bool {
	return c.TotalMinutes() > other.TotalMinutes()
}

// Appointment is the canonical, normalized form of a record. End is always
// strictly after Start.
type Appointment struct {
	Date        time.Time
	Start       Clock
	End         Clock
	PatientName string
	Studio      int
	Doctor      int
	Note        string
	Description string
	TypeCode    string
	Kind        Kind
}

// Summary is the calendar event title: the patient name for patient
// appointments (falling back to the free-text description), fixed labels
// for notes and service blocks.
func (a Appointment) Summary() string {
	switch a.Kind {
	case KindDailyNote:
		return "Nota giornaliera"
	case KindService:
		return fmt.Sprintf("Servizio (Dott. %d, Studio %d)", a.Doctor, a.Studio)
	default:
		if a.PatientName != "" {
			return a.PatientName
		}
		return a.Description
	}
}

// Body is the calendar event description. Notes and service blocks fall back
// through note and description so the entry is never published empty.
func (a Appointment) Body() string {
	switch a.Kind {
	case KindDailyNote:
		if a.Note != "" {
			return a.Note
		}
		if a.Description != "" {
			return a.Description
		}
		return "Nota giornaliera gestionale"
	case KindService:
		if a.Note != "" {
			return a.Note
		}
		if a.Description != "" {
			return a.Description
		}
		return fmt.Sprintf("Servizio interno gestionale (Dottore %d, Studio %d)", a.Doctor, a.Studio)
	default:
		return a.Note
	}
}

// StartAt combines the date and start clock in the given location.
func (a Appointment) StartAt(loc *time.Location) time.Time {
	return at(a.Date, a.Start, loc)
}

// EndAt combines the date and end clock in the given location.
func (a Appointment) EndAt(loc *time.Location) time.Time {
	return at(a.Date, a.End, loc)
}

func at(date time.Time, c Clock, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, loc)
}
