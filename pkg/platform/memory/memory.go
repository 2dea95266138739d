// Package memory provides an in-process Service Worker platform. Tests and the
// simulator drive it by hand the way a browser would: moving workers between
// slots, firing updatefound, and dispatching per-worker state changes.
package memory

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/bottlerocket-os/swwatch/pkg/platform"
	"github.com/pkg/errors"
)

var (
	_ platform.Container    = (*Container)(nil)
	_ platform.Registration = (*Registration)(nil)
	_ platform.Worker       = (*Worker)(nil)
)

var nextID uint64

// Worker is an in-memory Service Worker.
type Worker struct {
	id string

	mu        sync.Mutex
	state     marker.WorkerState
	listeners map[int]func(marker.WorkerState)
	nextSub   int
	messages  []platform.Message
	posted    chan platform.Message
}

// NewWorker creates a worker already in state.
func NewWorker(state marker.WorkerState) *Worker {
	return &Worker{
		id:        "worker-" + strconv.FormatUint(atomic.AddUint64(&nextID, 1), 10),
		state:     state,
		listeners: map[int]func(marker.WorkerState){},
		posted:    make(chan platform.Message, 16),
	}
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) State() marker.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) OnStateChange(fn func(marker.WorkerState)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.listeners[id] = fn
	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// Listeners reports the number of active statechange subscriptions.
func (w *Worker) Listeners() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

func (w *Worker) PostMessage(msg platform.Message) error {
	w.mu.Lock()
	w.messages = append(w.messages, msg)
	w.mu.Unlock()
	select {
	case w.posted <- msg:
	default:
	}
	return nil
}

// Messages returns every message posted to the worker so far.
func (w *Worker) Messages() []platform.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]platform.Message(nil), w.messages...)
}

// Posted delivers posted messages as they arrive.
func (w *Worker) Posted() <-chan platform.Message {
	return w.posted
}

// DispatchStateChange moves the worker to state and notifies its listeners
// synchronously, in subscription order. A transition that does not advance
// the lifecycle is rejected.
func (w *Worker) DispatchStateChange(state marker.WorkerState) error {
	w.mu.Lock()
	if !platform.Advances(w.state, state) {
		from := w.state
		w.mu.Unlock()
		return errors.Errorf("worker %s cannot move from %q to %q", w.id, from, state)
	}
	w.state = state
	fns := w.snapshot()
	w.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
	return nil
}

func (w *Worker) snapshot() []func(marker.WorkerState) {
	fns := make([]func(marker.WorkerState), 0, len(w.listeners))
	for i := 0; i < w.nextSub; i++ {
		if fn, ok := w.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

// Registration is an in-memory ServiceWorkerRegistration.
type Registration struct {
	mu      sync.Mutex
	slots   map[marker.Slot]*Worker
	found   map[int]func()
	nextSub int
}

// NewRegistration creates a registration whose slots hold fresh workers in the
// given states. Slots left out of initial are empty.
func NewRegistration(initial map[marker.Slot]marker.WorkerState) (*Registration, error) {
	r := &Registration{
		slots: map[marker.Slot]*Worker{},
		found: map[int]func(){},
	}
	for slot, state := range initial {
		if !validSlot(slot) {
			return nil, errors.Errorf("unknown slot %q", slot)
		}
		if !platform.Known(state) {
			return nil, errors.Errorf("unknown worker state %q for slot %q", state, slot)
		}
		r.slots[slot] = NewWorker(state)
	}
	return r, nil
}

func validSlot(slot marker.Slot) bool {
	switch slot {
	case marker.SlotInstalling, marker.SlotWaiting, marker.SlotActive:
		return true
	}
	return false
}

// Slot returns the worker in slot, or nil.
func (r *Registration) Slot(slot marker.Slot) *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[slot]
}

func (r *Registration) Installing() platform.Worker {
	return r.worker(marker.SlotInstalling)
}

func (r *Registration) Waiting() platform.Worker {
	return r.worker(marker.SlotWaiting)
}

func (r *Registration) Active() platform.Worker {
	return r.worker(marker.SlotActive)
}

// worker avoids handing out a typed nil inside the interface.
func (r *Registration) worker(slot marker.Slot) platform.Worker {
	w := r.Slot(slot)
	if w == nil {
		return nil
	}
	return w
}

func (r *Registration) OnUpdateFound(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.found[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.found, id)
		r.mu.Unlock()
	}
}

// SetInstalling places w in the installing slot, replacing whatever was there.
func (r *Registration) SetInstalling(w *Worker) {
	r.mu.Lock()
	r.slots[marker.SlotInstalling] = w
	r.mu.Unlock()
}

// MoveStage moves the worker in from into to. The worker previously in to is
// superseded and dropped.
func (r *Registration) MoveStage(from, to marker.Slot) error {
	if !validSlot(from) || !validSlot(to) {
		return errors.Errorf("cannot move from %q to %q", from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.slots[from]
	if w == nil {
		return errors.Errorf("slot %q is empty", from)
	}
	delete(r.slots, from)
	r.slots[to] = w
	return nil
}

// DispatchUpdateFound fires updatefound synchronously.
func (r *Registration) DispatchUpdateFound() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.found))
	for i := 0; i < r.nextSub; i++ {
		if fn, ok := r.found[i]; ok {
			fns = append(fns, fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Container is an in-memory navigator.serviceWorker that always resolves
// registration to the same Registration.
type Container struct {
	reg *Registration

	mu         sync.Mutex
	registered []string
	reloads    int32
	reloaded   chan struct{}
	failWith   error
}

// NewContainer creates a Container resolving registrations to reg.
func NewContainer(reg *Registration) *Container {
	return &Container{reg: reg, reloaded: make(chan struct{}, 16)}
}

// FailRegistration makes subsequent Register calls return err.
func (c *Container) FailRegistration(err error) {
	c.mu.Lock()
	c.failWith = err
	c.mu.Unlock()
}

func (c *Container) Register(ctx context.Context, scriptURL string) (platform.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = append(c.registered, scriptURL)
	if c.failWith != nil {
		return nil, c.failWith
	}
	return c.reg, nil
}

// Registered lists the script URLs registered so far.
func (c *Container) Registered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.registered...)
}

func (c *Container) Reload() error {
	atomic.AddInt32(&c.reloads, 1)
	select {
	case c.reloaded <- struct{}{}:
	default:
	}
	return nil
}

// Reloads reports how many times the page was reloaded.
func (c *Container) Reloads() int {
	return int(atomic.LoadInt32(&c.reloads))
}

// Reloaded signals each reload.
func (c *Container) Reloaded() <-chan struct{} {
	return c.reloaded
}
