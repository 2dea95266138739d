package platform

import (
	"context"

	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/pkg/errors"
)

// Container is the page's handle on Service Worker registration, the
// navigator.serviceWorker of a browser.
type Container interface {
	// Register installs (or refreshes) the worker script at scriptURL and
	// returns its Registration once the platform resolves it.
	Register(ctx context.Context, scriptURL string) (Registration, error)
	// Reload reloads the page, discarding all in-memory state.
	Reload() error
}

// Registration binds a script URL to its installing, waiting and active
// workers. A worker occupies at most one slot at a time; the platform moves it
// between slots. Empty slots are reported as nil.
type Registration interface {
	Installing() Worker
	Waiting() Worker
	Active() Worker
	// OnUpdateFound calls fn each time a new worker begins installing. The
	// returned func removes the subscription.
	OnUpdateFound(fn func()) (cancel func())
}

// Worker is one version of the Service Worker.
type Worker interface {
	// ID is stable for the lifetime of the worker and distinct between
	// workers of the same registration.
	ID() string
	State() marker.WorkerState
	// OnStateChange calls fn with the new state on each transition, in the
	// order the platform delivers them. The returned func removes the
	// subscription.
	OnStateChange(fn func(marker.WorkerState)) (cancel func())
	// PostMessage delivers msg to the worker's own message handler.
	PostMessage(msg Message) error
}

// Message is a structured control message posted to a worker.
type Message struct {
	Type marker.MessageType `json:"type"`
}

// SkipWaiting is the message that promotes a waiting worker.
func SkipWaiting() Message {
	return Message{Type: marker.MessageSkipWaiting}
}

var order = map[marker.WorkerState]int{
	marker.WorkerStateParsed:     0,
	marker.WorkerStateInstalling: 1,
	marker.WorkerStateInstalled:  2,
	marker.WorkerStateActivating: 3,
	marker.WorkerStateActivated:  4,
	marker.WorkerStateRedundant:  5,
}

// Known reports whether state is one of the lifecycle states.
func Known(state marker.WorkerState) bool {
	_, ok := order[state]
	return ok
}

// Terminal states make no further progress.
func Terminal(state marker.WorkerState) bool {
	return state == marker.WorkerStateActivated || state == marker.WorkerStateRedundant
}

// Advances reports whether a worker in state from may next report state to.
// Progression is forward only; redundant is reachable from any state short of
// activated.
func Advances(from, to marker.WorkerState) bool {
	f, ok := order[from]
	if !ok {
		return false
	}
	t, ok := order[to]
	if !ok {
		return false
	}
	if to == marker.WorkerStateRedundant {
		return from != marker.WorkerStateActivated && from != marker.WorkerStateRedundant
	}
	return t > f
}

// Ping verifies the container is usable before the lifecycle is started on it.
func Ping(c Container) error {
	if c == nil {
		return errors.New("service worker container is unavailable")
	}
	return nil
}
