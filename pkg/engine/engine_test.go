package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/studiomerlo/dentsync/pkg/agenda"
	"github.com/studiomerlo/dentsync/pkg/config"
	"github.com/studiomerlo/dentsync/pkg/gcal"
	"github.com/studiomerlo/dentsync/pkg/router"
	"github.com/studiomerlo/dentsync/pkg/syncmap"
)

type remoteCall struct {
	calendarID string
	eventID    string
	body       *calendar.Event
}

// fakeGateway records calls and pops queued errors per event summary.
type fakeGateway struct {
	mu      sync.Mutex
	inserts []remoteCall
	updates []remoteCall
	errs    map[string][]error
	nextID  int
}

func (g *fakeGateway) popErr(summary string) error {
	queue := g.errs[summary]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	g.errs[summary] = queue[1:]
	return err
}

func (g *fakeGateway) Insert(_ context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inserts = append(g.inserts, remoteCall{calendarID: calendarID, body: ev})
	if err := g.popErr(ev.Summary); err != nil {
		return nil, err
	}
	g.nextID++
	return &calendar.Event{Id: fmt.Sprintf("evt-%d", g.nextID)}, nil
}

func (g *fakeGateway) Update(_ context.Context, calendarID, eventID string, ev *calendar.Event) (*calendar.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, remoteCall{calendarID: calendarID, eventID: eventID, body: ev})
	if err := g.popErr(ev.Summary); err != nil {
		return nil, err
	}
	return &calendar.Event{Id: eventID}, nil
}

func (g *fakeGateway) List(context.Context, string, time.Time) ([]*calendar.Event, error) {
	return nil, nil
}

func (g *fakeGateway) Delete(context.Context, string, string) error { return nil }

var _ gcal.Gateway = (*fakeGateway)(nil)

func testRouter() router.Router {
	return router.New(config.Calendars{
		Default:  "cal-default",
		ByStudio: map[int]string{1: "cal-studio-1", 2: "cal-studio-2"},
	})
}

func patientAppt(name string, start agenda.Clock, studio int) agenda.Appointment {
	return agenda.Appointment{
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Start:       start,
		End:         agenda.Clock{Hour: start.Hour, Minute: start.Minute + 10},
		PatientName: name,
		Studio:      studio,
		Kind:        agenda.KindPatient,
	}
}

func noSleep(d time.Duration) {}

func TestRun_CreatesThenSkips(t *testing.T) {
	gw := &fakeGateway{}
	store := syncmap.NewMemStore()
	eng := New(gw, store, testRouter(), Options{Location: time.UTC, sleep: noSleep})

	appts := []agenda.Appointment{
		patientAppt("Rossi Mario", agenda.Clock{Hour: 9}, 1),
		patientAppt("Verdi Anna", agenda.Clock{Hour: 10}, 2),
	}

	sum, err := eng.Run(context.Background(), appts)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Created)
	assert.Zero(t, sum.Updated)
	assert.Zero(t, sum.Failed)
	require.Len(t, gw.inserts, 2)
	assert.Equal(t, "cal-studio-1", gw.inserts[0].calendarID)
	assert.Equal(t, "cal-studio-2", gw.inserts[1].calendarID)

	mapping, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, mapping, 2)

	// second run over the same batch does nothing remotely
	sum, err = eng.Run(context.Background(), appts)
	require.NoError(t, err)
	assert.Zero(t, sum.Created)
	assert.Zero(t, sum.Updated)
	assert.Equal(t, 2, sum.Skipped)
	assert.Len(t, gw.inserts, 2)
}

func TestRun_ModifiedRecordUpdatesInPlace(t *testing.T) {
	gw := &fakeGateway{}
	store := syncmap.NewMemStore()
	eng := New(gw, store, testRouter(), Options{Location: time.UTC, sleep: noSleep})

	a := patientAppt("Rossi Mario", agenda.Clock{Hour: 9}, 1)
	_, err := eng.Run(context.Background(), []agenda.Appointment{a})
	require.NoError(t, err)
	require.Len(t, gw.inserts, 1)

	a.Note = "portare radiografie"
	sum, err := eng.Run(context.Background(), []agenda.Appointment{a})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	require.Len(t, gw.updates, 1)
	assert.Equal(t, "evt-1", gw.updates[0].eventID)
	assert.Equal(t, "portare radiografie", gw.updates[0].body.Description)

	mapping, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, a.ContentHash(), mapping[a.Identity()].Hash)
}

func TestRun_RetriesOnRateLimit(t *testing.T) {
	a := patientAppt("Rossi Mario", agenda.Clock{Hour: 9}, 1)
	gw := &fakeGateway{errs: map[string][]error{
		"Rossi Mario": {
			&gcal.RateLimitError{Err: errors.New("quota")},
			&gcal.RateLimitError{Err: errors.New("quota")},
		},
	}}
	store := syncmap.NewMemStore()

	var waits []time.Duration
	var events []Event
	eng := New(gw, store, testRouter(), Options{
		Location:    time.UTC,
		MaxAttempts: 3,
		BackoffCap:  5 * time.Second,
		Progress:    func(ev Event) { events = append(events, ev) },
		sleep:       func(d time.Duration) { waits = append(waits, d) },
	})

	sum, err := eng.Run(context.Background(), []agenda.Appointment{a})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)
	assert.Zero(t, sum.Failed)
	assert.Len(t, gw.inserts, 3, "two throttled attempts plus the success")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)

	require.Len(t, events, 3)
	assert.Equal(t, StatusRetrying, events[0].Status)
	assert.Equal(t, 1, events[0].Attempt)
	assert.Equal(t, StatusRetrying, events[1].Status)
	assert.Equal(t, StatusSuccess, events[2].Status)
}

func TestRun_RateLimitExhaustsAttempts(t *testing.T) {
	a := patientAppt("Rossi Mario", agenda.Clock{Hour: 9}, 1)
	gw := &fakeGateway{errs: map[string][]error{
		"Rossi Mario": {
			&gcal.RateLimitError{Err: errors.New("quota")},
			&gcal.RateLimitError{Err: errors.New("quota")},
			&gcal.RateLimitError{Err: errors.New("quota")},
		},
	}}
	store := syncmap.NewMemStore()
	eng := New(gw, store, testRouter(), Options{Location: time.UTC, MaxAttempts: 3, sleep: noSleep})

	sum, err := eng.Run(context.Background(), []agenda.Appointment{a})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "create", sum.Failures[0].Action)

	mapping, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, mapping, "failed items never enter the sync map")
}

func TestRun_InvalidItemNeverReachesRemote(t *testing.T) {
	invalid := patientAppt("", agenda.Clock{Hour: 9}, 1) // no name, no description
	valid := patientAppt("Verdi Anna", agenda.Clock{Hour: 10}, 1)
	gw := &fakeGateway{}
	store := syncmap.NewMemStore()

	var events []Event
	eng := New(gw, store, testRouter(), Options{
		Location: time.UTC,
		Progress: func(ev Event) { events = append(events, ev) },
		sleep:    noSleep,
	})

	sum, err := eng.Run(context.Background(), []agenda.Appointment{invalid, valid})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Invalid)
	assert.Equal(t, 1, sum.Created)
	assert.Len(t, gw.inserts, 1)

	require.Len(t, events, 2)
	assert.Equal(t, StatusInvalid, events[0].Status)
}

func TestRun_PermanentFailureDoesNotAbort(t *testing.T) {
	failing := patientAppt("Rossi Mario", agenda.Clock{Hour: 9}, 1)
	ok := patientAppt("Verdi Anna", agenda.Clock{Hour: 10}, 1)
	gw := &fakeGateway{errs: map[string][]error{
		"Rossi Mario": {&gcal.RemoteError{Status: 500, Err: errors.New("backend error")}},
	}}
	store := syncmap.NewMemStore()
	eng := New(gw, store, testRouter(), Options{Location: time.UTC, sleep: noSleep})

	sum, err := eng.Run(context.Background(), []agenda.Appointment{failing, ok})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Created)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, failing.Identity(), sum.Failures[0].Identity)
	assert.NotNil(t, sum.Failures[0].Body)

	mapping, err := store.Load()
	require.NoError(t, err)
	assert.Contains(t, mapping, ok.Identity())
	assert.NotContains(t, mapping, failing.Identity())
}

func TestRun_PersistsAfterEveryChunk(t *testing.T) {
	var appts []agenda.Appointment
	for i := 0; i < 5; i++ {
		appts = append(appts, patientAppt(fmt.Sprintf("Paziente %d", i), agenda.Clock{Hour: 9 + i}, 1))
	}
	gw := &fakeGateway{}
	store := syncmap.NewMemStore()
	eng := New(gw, store, testRouter(), Options{Location: time.UTC, ChunkSize: 2, sleep: noSleep})

	sum, err := eng.Run(context.Background(), appts)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Created)
	assert.Equal(t, 3, store.Saves, "one save per chunk of two")
}

func TestRun_CancellationKeepsAppliedWork(t *testing.T) {
	appts := []agenda.Appointment{
		patientAppt("Rossi Mario", agenda.Clock{Hour: 9}, 1),
		patientAppt("Verdi Anna", agenda.Clock{Hour: 10}, 1),
		patientAppt("Bianchi Luca", agenda.Clock{Hour: 11}, 1),
	}
	gw := &fakeGateway{}
	store := syncmap.NewMemStore()

	ctx, cancel := context.WithCancel(context.Background())
	eng := New(gw, store, testRouter(), Options{
		Location: time.UTC,
		Progress: func(Event) { cancel() },
		sleep:    noSleep,
	})

	sum, err := eng.Run(ctx, appts)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Created)
	assert.Len(t, gw.inserts, 1)

	mapping, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Len(t, mapping, 1, "work done before cancellation is persisted")
}

type brokenStore struct{ err error }

func (s brokenStore) Load() (map[string]syncmap.Record, error) { return nil, s.err }
func (s brokenStore) Save(map[string]syncmap.Record) error     { return s.err }
func (s brokenStore) Reset() error                             { return s.err }

func TestRun_CorruptStoreAborts(t *testing.T) {
	cause := fmt.Errorf("%w: bad file", syncmap.ErrCorrupt)
	gw := &fakeGateway{}
	eng := New(gw, brokenStore{err: cause}, testRouter(), Options{Location: time.UTC, sleep: noSleep})

	_, err := eng.Run(context.Background(), []agenda.Appointment{
		patientAppt("Rossi Mario", agenda.Clock{Hour: 9}, 1),
	})
	require.ErrorIs(t, err, syncmap.ErrCorrupt)
	assert.Empty(t, gw.inserts, "nothing is submitted on a corrupt sync map")
}

func TestBackoffIsCapped(t *testing.T) {
	eng := New(&fakeGateway{}, syncmap.NewMemStore(), testRouter(), Options{BackoffCap: 5 * time.Second})
	assert.Equal(t, 2*time.Second, eng.backoff(1))
	assert.Equal(t, 4*time.Second, eng.backoff(2))
	assert.Equal(t, 5*time.Second, eng.backoff(3))
	assert.Equal(t, 5*time.Second, eng.backoff(10))
}

func TestSummaryString(t *testing.T) {
	sum := &Summary{
		Total:      4,
		Created:    2,
		Updated:    1,
		Skipped:    1,
		Collisions: 1,
		PerStudio: map[int]StudioCount{
			1: {Created: 2},
			2: {Updated: 1, Skipped: 1},
		},
	}
	out := sum.String()
	assert.Contains(t, out, "total 4: 2 created, 1 updated, 1 unchanged")
	assert.Contains(t, out, "1 identity collisions")
	assert.Contains(t, out, "studio 1: 2 created")
	assert.Contains(t, out, "studio 2: 0 created, 1 updated, 1 unchanged")
}
