// Package syncmap persists the identity to remote-event mapping that makes
// repeated sync runs idempotent.
package syncmap

import "errors"

// ErrCorrupt marks a store whose content exists but cannot be read. A
// corrupt store must abort the run: treating it as empty would recreate
// every remote event.
var ErrCorrupt = errors.New("sync map is corrupt")

// Record is what we remember about one synced appointment.
type Record struct {
	EventID string `json:"event_id"`
	Hash    string `json:"hash"`
}

// Store is the sync map contract. Load returns an empty map when nothing
// has been synced yet. Save replaces the whole mapping. Reset clears the
// store entirely; it is used after the remote calendar has been emptied,
// since the stored event IDs are then unreferenceable.
//
// A store must only be written by one engine at a time; callers serialize
// concurrent runs.
type Store interface {
	Load() (map[string]Record, error)
	Save(mapping map[string]Record) error
	Reset() error
}
