package windent

import (
	"fmt"
	"log"
	"strings"
	"time"

	dbf "github.com/SebastiaanKlippert/go-foxpro-dbf"
	"golang.org/x/text/encoding/charmap"
)

// win1252Decoder decodes the cp1252 text the windent tables are written in.
type win1252Decoder struct{}

func (win1252Decoder) Decode(in []byte) ([]byte, error) {
	return charmap.Windows1252.NewDecoder().Bytes(in)
}

// DBFSource reads appointments and patients from the windent FoxPro tables.
type DBFSource struct {
	AppointmentsPath string
	PatientsPath     string
}

// NewDBFSource returns a source over the two table files.
func NewDBFSource(appointmentsPath, patientsPath string) *DBFSource {
	return &DBFSource{
		AppointmentsPath: appointmentsPath,
		PatientsPath:     patientsPath,
	}
}

// Appointments reads the APPUNTA table and returns the records of the given
// month in table order. Records whose date field is blank are skipped here,
// since without a date they cannot belong to any month.
func (s *DBFSource) Appointments(month time.Month, year int) ([]RawAppointment, error) {
	table, err := dbf.OpenFile(s.AppointmentsPath, new(win1252Decoder))
	if err != nil {
		return nil, fmt.Errorf("failed to open appointments table %s: %w", s.AppointmentsPath, err)
	}
	defer table.Close()

	cols := columnIndex(table, ColDate, ColStartTime, ColEndTime, ColPatientID,
		ColTypeCode, ColDoctor, ColStudio, ColNote, ColDescription)
	if cols[ColDate] < 0 {
		return nil, fmt.Errorf("appointments table %s has no %s column", s.AppointmentsPath, ColDate)
	}

	var out []RawAppointment
	for i := uint32(0); i < table.NumRecords(); i++ {
		if err := table.GoTo(i); err != nil {
			return nil, fmt.Errorf("failed to position on record %d: %w", i, err)
		}
		deleted, err := table.Deleted()
		if err != nil {
			return nil, err
		}
		if deleted {
			continue
		}
		rec, err := table.Record()
		if err != nil {
			log.Printf("Warning: unreadable record %d in %s: %v", i, s.AppointmentsPath, err)
			continue
		}

		date := fieldDate(rec, cols[ColDate])
		if date.IsZero() {
			continue
		}
		if date.Month() != month || date.Year() != year {
			continue
		}

		out = append(out, RawAppointment{
			Date:        date,
			StartTime:   fieldFloat(rec, cols[ColStartTime]),
			EndTime:     fieldFloat(rec, cols[ColEndTime]),
			PatientID:   fieldString(rec, cols[ColPatientID]),
			TypeCode:    fieldString(rec, cols[ColTypeCode]),
			Doctor:      fieldInt(rec, cols[ColDoctor]),
			Studio:      fieldInt(rec, cols[ColStudio]),
			Note:        fieldString(rec, cols[ColNote]),
			Description: fieldString(rec, cols[ColDescription]),
		})
	}
	return out, nil
}

// PatientNames reads the PAZIENTI table into an id to name directory.
func (s *DBFSource) PatientNames() (PatientDirectory, error) {
	table, err := dbf.OpenFile(s.PatientsPath, new(win1252Decoder))
	if err != nil {
		return nil, fmt.Errorf("failed to open patients table %s: %w", s.PatientsPath, err)
	}
	defer table.Close()

	cols := columnIndex(table, ColPatientCode, ColPatientName)
	if cols[ColPatientCode] < 0 || cols[ColPatientName] < 0 {
		return nil, fmt.Errorf("patients table %s is missing %s or %s", s.PatientsPath, ColPatientCode, ColPatientName)
	}

	dir := make(PatientDirectory)
	for i := uint32(0); i < table.NumRecords(); i++ {
		if err := table.GoTo(i); err != nil {
			return nil, err
		}
		deleted, err := table.Deleted()
		if err != nil {
			return nil, err
		}
		if deleted {
			continue
		}
		rec, err := table.Record()
		if err != nil {
			log.Printf("Warning: unreadable record %d in %s: %v", i, s.PatientsPath, err)
			continue
		}
		id := fieldString(rec, cols[ColPatientCode])
		if id == "" {
			continue
		}
		dir[id] = fieldString(rec, cols[ColPatientName])
	}
	return dir, nil
}

func columnIndex(table *dbf.DBF, names ...string) map[string]int {
	idx := make(map[string]int, len(names))
	for _, name := range names {
		idx[name] = table.FieldPos(name)
	}
	return idx
}

func fieldString(rec *dbf.Record, pos int) string {
	if pos < 0 {
		return ""
	}
	v, err := rec.Field(pos)
	if err != nil {
		return ""
	}
	return trimmedString(v)
}

func fieldFloat(rec *dbf.Record, pos int) float64 {
	if pos < 0 {
		return 0
	}
	v, err := rec.Field(pos)
	if err != nil {
		return 0
	}
	return numericValue(v)
}

func fieldInt(rec *dbf.Record, pos int) int {
	return int(fieldFloat(rec, pos))
}

func fieldDate(rec *dbf.Record, pos int) time.Time {
	if pos < 0 {
		return time.Time{}
	}
	v, err := rec.Field(pos)
	if err != nil {
		return time.Time{}
	}
	return dateValue(v)
}

// trimmedString renders a DBF field value as trimmed text.
func trimmedString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// numericValue renders a DBF numeric field, which the reader may surface as
// an integer or a float depending on the column's declared decimals.
func numericValue(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case int:
		return float64(t)
	default:
		return 0
	}
}

// dateValue renders a DBF date field. Some exports store dates as ISO text
// in character columns, so both forms are accepted.
func dateValue(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}
