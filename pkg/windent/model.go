package windent

import (
	"strings"
	"time"
)

// Column names of the windent APPUNTA table.
const (
	ColDate        = "DB_APDATA"
	ColStartTime   = "DB_APOREIN"
	ColEndTime     = "DB_APOREOU"
	ColPatientID   = "DB_APPACOD"
	ColTypeCode    = "DB_GUARDIA"
	ColDoctor      = "DB_APMEDIC"
	ColStudio      = "DB_APSTUDI"
	ColNote        = "DB_NOTE"
	ColDescription = "DB_APDESCR"
)

// Column names of the windent PAZIENTI table.
const (
	ColPatientCode = "DB_CODE"
	ColPatientName = "DB_PANOME"
)

// RawAppointment is one record of the appointment book as stored in the
// legacy table. Start and end times use the practice's decimal-minute
// encoding (18.40 means 18:40). A zero Date means the field was blank.
type RawAppointment struct {
	Date        time.Time
	StartTime   float64
	EndTime     float64
	PatientID   string
	TypeCode    string
	Doctor      int
	Studio      int
	Note        string
	Description string
}

// PatientDirectory resolves patient IDs to display names.
type PatientDirectory map[string]string

// DisplayName returns the patient name for id, or "" when unknown.
func (d PatientDirectory) DisplayName(id string) string {
	if d == nil {
		return ""
	}
	return strings.TrimSpace(d[strings.TrimSpace(id)])
}

// Source supplies raw appointment records and the patient lookup.
type Source interface {
	// Appointments returns the records for the given month, in table order.
	Appointments(month time.Month, year int) ([]RawAppointment, error)
	// PatientNames returns the id to display-name directory.
	PatientNames() (PatientDirectory, error)
}
