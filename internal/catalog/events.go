package catalog

import "time"

const (
	EventCatalogReloaded  = "catalog.reloaded"
	EventReloadFailed     = "catalog.reload_failed"
	EventOwnershipUpdated = "ownership.updated"
)

// Event is pushed to subscribers after every committed state change and
// after a failed reload.
type Event struct {
	Type        string    `json:"type"`
	Generation  string    `json:"generation,omitempty"`
	Stats       *Stats    `json:"stats,omitempty"`
	Diagnostics int       `json:"diagnostics,omitempty"`
	Identity    string    `json:"identity,omitempty"`
	Count       int       `json:"count,omitempty"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier receives events. The push hub implements it.
type Notifier interface {
	BroadcastJSON(v any)
}
