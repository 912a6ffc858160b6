package agenda

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// hashLength is the number of hex characters kept from the content digest.
// 16 chars (64 bits) is plenty for equality comparison; no cryptographic
// property is needed.
const hashLength = 16

// Identity is the stable composite key of an appointment: date, start time,
// studio and the patient name (or description for patient-less entries).
// Changing the note, end time or type code does not move an appointment to
// a new identity; it only changes the content hash.
func (a Appointment) Identity() string {
	label := a.PatientName
	if label == "" {
		label = a.Description
	}
	return fmt.Sprintf("%s_%s_%d_%s", a.Date.Format("2006-01-02"), a.Start, a.Studio, label)
}

// ContentHash digests every display-relevant field. Two appointments with
// the same identity but different hashes are the same appointment,
// modified.
func (a Appointment) ContentHash() string {
	relevant := strings.Join([]string{
		a.Date.Format("2006-01-02"),
		a.Start.String(),
		a.End.String(),
		fmt.Sprint(a.Studio),
		a.PatientName,
		a.Description,
		a.Note,
	}, "_")
	sum := sha256.Sum256([]byte(relevant))
	return hex.EncodeToString(sum[:])[:hashLength]
}
