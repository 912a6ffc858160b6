// Package plan diffs a batch of canonical appointments against the sync
// map and decides, per appointment, whether the remote event must be
// created, updated, or left alone.
package plan

import (
	"github.com/studiomerlo/dentsync/pkg/agenda"
	"github.com/studiomerlo/dentsync/pkg/syncmap"
)

// Item is one planned operation.
type Item struct {
	Appointment agenda.Appointment
	Identity    string
	Hash        string
	// EventID is the existing remote event for updates; empty on creates.
	EventID string
}

// Plan partitions a batch into three disjoint, order-preserving lists.
// Every surviving input appointment appears in exactly one of them.
type Plan struct {
	Creates []Item
	Updates []Item
	Skips   []Item

	// Collisions counts records that shared an identity with a later
	// record in the same batch. The later record wins; collisions are a
	// data-quality signal for the run summary, not an error.
	Collisions int
}

// Total returns the number of planned items.
func (p Plan) Total() int {
	return len(p.Creates) + len(p.Updates) + len(p.Skips)
}

// Build computes the plan for a batch against a store snapshot.
func Build(appts []agenda.Appointment, snapshot map[string]syncmap.Record) Plan {
	// Deduplicate by identity first, keeping the last occurrence. The
	// appointment book can hold two records that reduce to the same slot;
	// the original system let the later one win.
	type slot struct {
		appt agenda.Appointment
		pos  int
	}
	order := make([]string, 0, len(appts))
	byIdentity := make(map[string]slot, len(appts))
	collisions := 0
	for _, a := range appts {
		id := a.Identity()
		if prev, seen := byIdentity[id]; seen {
			collisions++
			byIdentity[id] = slot{appt: a, pos: prev.pos}
			continue
		}
		byIdentity[id] = slot{appt: a, pos: len(order)}
		order = append(order, id)
	}

	p := Plan{Collisions: collisions}
	for _, id := range order {
		a := byIdentity[id].appt
		item := Item{Appointment: a, Identity: id, Hash: a.ContentHash()}
		rec, synced := snapshot[id]
		switch {
		case !synced:
			p.Creates = append(p.Creates, item)
		case rec.Hash != item.Hash:
			item.EventID = rec.EventID
			p.Updates = append(p.Updates, item)
		default:
			item.EventID = rec.EventID
			p.Skips = append(p.Skips, item)
		}
	}
	return p
}
