package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/studiomerlo/dentsync/pkg/plan"
)

// StudioCount is the per-studio slice of the run outcome.
type StudioCount struct {
	Created int
	Updated int
	Skipped int
	Invalid int
	Failed  int
}

// Failure carries enough context to diagnose a permanently failed item
// without re-running: the attempted event body and the remote error.
type Failure struct {
	Identity string          `json:"identity"`
	Summary  string          `json:"summary"`
	Action   string          `json:"action"`
	Body     *calendar.Event `json:"event"`
	Error    string          `json:"error"`
}

// Summary is the structured outcome of one sync run.
type Summary struct {
	RunID      string
	Total      int
	Created    int
	Updated    int
	Skipped    int
	Invalid    int
	Failed     int
	Collisions int
	PerStudio  map[int]StudioCount
	Failures   []Failure
}

func newSummary(p plan.Plan) *Summary {
	sum := &Summary{
		RunID:      NewRunID(),
		Total:      p.Total(),
		Skipped:    len(p.Skips),
		Collisions: p.Collisions,
		PerStudio:  map[int]StudioCount{},
	}
	for _, it := range p.Skips {
		sum.bump(it.Appointment.Studio, func(c *StudioCount) { c.Skipped++ })
	}
	return sum
}

func (s *Summary) bump(studio int, f func(*StudioCount)) {
	c := s.PerStudio[studio]
	f(&c)
	s.PerStudio[studio] = c
}

// String renders the run outcome for logs and the CLI.
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "total %d: %d created, %d updated, %d unchanged, %d invalid, %d failed",
		s.Total, s.Created, s.Updated, s.Skipped, s.Invalid, s.Failed)
	if s.Collisions > 0 {
		fmt.Fprintf(&b, ", %d identity collisions", s.Collisions)
	}
	studios := make([]int, 0, len(s.PerStudio))
	for studio := range s.PerStudio {
		studios = append(studios, studio)
	}
	sort.Ints(studios)
	for _, studio := range studios {
		c := s.PerStudio[studio]
		fmt.Fprintf(&b, "\n  studio %d: %d created, %d updated, %d unchanged, %d invalid, %d failed",
			studio, c.Created, c.Updated, c.Skipped, c.Invalid, c.Failed)
	}
	return b.String()
}

// diagnosticLine is the JSONL record appended for each permanent failure.
type diagnosticLine struct {
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`
	Failure
}

// recordDiagnostic appends the failure to the diagnostics file. Failing to
// write a diagnostic never fails the run.
func (e *Engine) recordDiagnostic(runID string, f Failure) {
	if e.opts.DiagnosticsPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(e.opts.DiagnosticsPath), 0o700); err != nil {
		log.Printf("Warning: could not create diagnostics directory: %v", err)
		return
	}
	out, err := os.OpenFile(e.opts.DiagnosticsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		log.Printf("Warning: could not open diagnostics file: %v", err)
		return
	}
	defer out.Close()
	if err := json.NewEncoder(out).Encode(diagnosticLine{RunID: runID, At: time.Now(), Failure: f}); err != nil {
		log.Printf("Warning: could not write diagnostic: %v", err)
	}
}
