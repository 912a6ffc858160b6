// Package engine applies a reconciliation plan against the remote
// calendar: validate, submit, retry on throttling, isolate per-item
// failures, and persist the sync map as it goes.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"

	"github.com/studiomerlo/dentsync/pkg/agenda"
	"github.com/studiomerlo/dentsync/pkg/gcal"
	"github.com/studiomerlo/dentsync/pkg/plan"
	"github.com/studiomerlo/dentsync/pkg/router"
	"github.com/studiomerlo/dentsync/pkg/syncmap"
)

// Action says what the executor is doing with an item.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
)

func (a Action) String() string {
	if a == ActionUpdate {
		return "update"
	}
	return "create"
}

// Status is the per-item outcome reported through the progress callback.
type Status int

const (
	// StatusSuccess means the remote call went through and the sync map
	// entry was updated.
	StatusSuccess Status = iota
	// StatusRetrying means the remote throttled us and the item will be
	// resubmitted after a backoff wait.
	StatusRetrying
	// StatusFailed means the item failed permanently; the run continues
	// with the remaining items.
	StatusFailed
	// StatusInvalid means the item was rejected before any remote call.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusRetrying:
		return "retrying"
	case StatusFailed:
		return "failed"
	case StatusInvalid:
		return "invalid"
	default:
		return "success"
	}
}

// Event is one progress notification. Index counts processed items from 1;
// retry notifications repeat the same index with the attempt number.
type Event struct {
	Index    int
	Total    int
	Action   Action
	Identity string
	Summary  string
	Status   Status
	Attempt  int
	Wait     time.Duration
	Err      error
}

// Progress receives an Event after each processed item and on each retry.
// It is called from the engine's goroutine; the engine blocks on it.
type Progress func(Event)

// Options tunes the executor. Zero values get the defaults the practice
// runs with.
type Options struct {
	Colors      map[string]string
	Location    *time.Location
	ChunkSize   int
	MaxAttempts int
	BackoffCap  time.Duration
	// Limiter, when set, paces submits in addition to the reactive
	// backoff.
	Limiter  *rate.Limiter
	Progress Progress
	// DiagnosticsPath receives one JSON line per permanent failure.
	DiagnosticsPath string

	// sleep is a test seam; nil means time.Sleep.
	sleep func(time.Duration)
}

// Engine runs sync batches. One engine instance owns its store for the
// duration of a run; concurrent runs against the same store must be
// serialized by the caller.
type Engine struct {
	gw     gcal.Gateway
	store  syncmap.Store
	router router.Router
	opts   Options
}

// New builds an engine. Missing options fall back to chunk size 10, three
// attempts, a 5 second backoff cap and the local timezone.
func New(gw gcal.Gateway, store syncmap.Store, rt router.Router, opts Options) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 10
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.sleep == nil {
		opts.sleep = time.Sleep
	}
	return &Engine{gw: gw, store: store, router: rt, opts: opts}
}

type workItem struct {
	action Action
	item   plan.Item
}

// Run plans the batch against the current sync map and applies the result.
// It blocks until every item reaches a terminal state, the context is
// cancelled between items, or the store fails.
//
// Per-item remote failures do not abort the run; store and planning
// failures do.
func (e *Engine) Run(ctx context.Context, appts []agenda.Appointment) (*Summary, error) {
	snapshot, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot start sync: %w", err)
	}

	p := plan.Build(appts, snapshot)
	sum := newSummary(p)

	work := make([]workItem, 0, len(p.Creates)+len(p.Updates))
	for _, it := range p.Creates {
		work = append(work, workItem{action: ActionCreate, item: it})
	}
	for _, it := range p.Updates {
		work = append(work, workItem{action: ActionUpdate, item: it})
	}

	for start := 0; start < len(work); start += e.opts.ChunkSize {
		end := start + e.opts.ChunkSize
		if end > len(work) {
			end = len(work)
		}
		for i, w := range work[start:end] {
			if err := ctx.Err(); err != nil {
				// Cooperative cancellation between items: keep what
				// was applied so far.
				if saveErr := e.store.Save(snapshot); saveErr != nil {
					return sum, fmt.Errorf("cancelled and failed to persist sync map: %w", saveErr)
				}
				return sum, err
			}
			e.process(ctx, w, start+i+1, len(work), snapshot, sum)
		}
		if err := e.store.Save(snapshot); err != nil {
			return sum, fmt.Errorf("failed to persist sync map: %w", err)
		}
	}
	return sum, nil
}

func (e *Engine) process(ctx context.Context, w workItem, index, total int, snapshot map[string]syncmap.Record, sum *Summary) {
	a := w.item.Appointment

	// Validate before touching the network: a patient appointment with no
	// patient and no description has nothing to display.
	if a.Kind == agenda.KindPatient && a.Summary() == "" {
		sum.Invalid++
		sum.bump(a.Studio, func(c *StudioCount) { c.Invalid++ })
		e.emit(Event{Index: index, Total: total, Action: w.action, Identity: w.item.Identity, Status: StatusInvalid})
		return
	}

	body := gcal.Event(a, e.opts.Colors, e.opts.Location)
	calendarID := e.router.CalendarID(a.Studio)

	for attempt := 1; ; attempt++ {
		if e.opts.Limiter != nil {
			if err := e.opts.Limiter.Wait(ctx); err != nil {
				e.fail(w, index, total, body, err, sum)
				return
			}
		}

		var remote *calendar.Event
		var err error
		if w.action == ActionCreate {
			remote, err = e.gw.Insert(ctx, calendarID, body)
		} else {
			remote, err = e.gw.Update(ctx, calendarID, w.item.EventID, body)
		}

		if err == nil {
			snapshot[w.item.Identity] = syncmap.Record{EventID: remote.Id, Hash: w.item.Hash}
			if w.action == ActionCreate {
				sum.Created++
				sum.bump(a.Studio, func(c *StudioCount) { c.Created++ })
			} else {
				sum.Updated++
				sum.bump(a.Studio, func(c *StudioCount) { c.Updated++ })
			}
			e.emit(Event{Index: index, Total: total, Action: w.action, Identity: w.item.Identity, Summary: a.Summary(), Status: StatusSuccess, Attempt: attempt})
			return
		}

		if gcal.IsRateLimit(err) && attempt < e.opts.MaxAttempts {
			wait := e.backoff(attempt)
			e.emit(Event{Index: index, Total: total, Action: w.action, Identity: w.item.Identity, Summary: a.Summary(), Status: StatusRetrying, Attempt: attempt, Wait: wait, Err: err})
			e.opts.sleep(wait)
			continue
		}

		e.fail(w, index, total, body, err, sum)
		return
	}
}

func (e *Engine) fail(w workItem, index, total int, body *calendar.Event, err error, sum *Summary) {
	a := w.item.Appointment
	sum.Failed++
	sum.bump(a.Studio, func(c *StudioCount) { c.Failed++ })
	failure := Failure{
		Identity: w.item.Identity,
		Summary:  a.Summary(),
		Action:   w.action.String(),
		Body:     body,
		Error:    err.Error(),
	}
	sum.Failures = append(sum.Failures, failure)
	e.recordDiagnostic(sum.RunID, failure)
	e.emit(Event{Index: index, Total: total, Action: w.action, Identity: w.item.Identity, Summary: a.Summary(), Status: StatusFailed, Err: err})
}

// backoff returns min(2^attempt, cap) seconds.
func (e *Engine) backoff(attempt int) time.Duration {
	wait := time.Duration(1<<uint(attempt)) * time.Second
	if wait > e.opts.BackoffCap {
		wait = e.opts.BackoffCap
	}
	return wait
}

func (e *Engine) emit(ev Event) {
	if e.opts.Progress != nil {
		e.opts.Progress(ev)
	}
}

// NewRunID labels one engine invocation in summaries and diagnostics.
func NewRunID() string {
	return uuid.NewString()
}
