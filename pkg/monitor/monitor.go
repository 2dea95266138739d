package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/bottlerocket-os/swwatch/pkg/internal/logfields"
	"github.com/bottlerocket-os/swwatch/pkg/logging"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/bottlerocket-os/swwatch/pkg/platform"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Monitor observes a registration's workers and tells the first-ever
// installation (silent) apart from updates (notify, then reload once the user
// lets the new version take over).
type Monitor struct {
	log       logging.Logger
	reloader  reloader
	notifier  notifier
	scheduler scheduler
	delay     time.Duration

	mu          sync.Mutex
	initial     bool
	waiting     platform.Worker
	subscribed  map[string]*subscription
	unsubscribe []func()
}

// subscription holds a worker's statechange cancel. It is swapped out, not
// mutated, when released, so a subscribe racing a release can tell.
type subscription struct {
	cancel func()
}

type notifier interface {
	Notify(platform.Worker) <-chan struct{}
}

type reloader interface {
	Reload() error
}

// scheduler runs fn after d without blocking the caller.
type scheduler func(d time.Duration, fn func())

func afterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// New creates a Monitor that notifies through n and reloads through r after
// delay once an update is activated.
func New(log logging.Logger, n notifier, r reloader, delay time.Duration) (*Monitor, error) {
	switch {
	case n == nil:
		return nil, errors.New("notifier must be provided")
	case r == nil:
		return nil, errors.New("reloader must be provided")
	case delay < 0:
		return nil, errors.Errorf("reload delay must not be negative, got %s", delay)
	}
	return &Monitor{
		log:        log,
		notifier:   n,
		reloader:   r,
		scheduler:  afterFunc,
		delay:      delay,
		subscribed: map[string]*subscription{},
	}, nil
}

// Register registers scriptURL with the container and hands the resulting
// registration to HandleRegistration.
func (m *Monitor) Register(ctx context.Context, c platform.Container, scriptURL string) error {
	if err := platform.Ping(c); err != nil {
		return err
	}
	m.log.WithField("script", scriptURL).Debug("registering")
	reg, err := c.Register(ctx, scriptURL)
	if err != nil {
		return errors.WithMessagef(err, "could not register %q", scriptURL)
	}
	m.HandleRegistration(reg)
	return nil
}

// HandleRegistration starts observing reg. With no active worker, the
// lifecycle is the first installation: its state changes stay silent, though a
// worker already waiting is still announced so that it can be promoted.
func (m *Monitor) HandleRegistration(reg platform.Registration) {
	if reg == nil {
		m.log.Warn("ignoring nil registration")
		return
	}
	active := reg.Active()
	waiting := reg.Waiting()

	m.mu.Lock()
	m.initial = active == nil
	initial := m.initial
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"initial": initial,
		"waiting": waiting != nil,
	}).Debug("handling registration")

	// A previous session may have finished downloading an update that the
	// user never acted on.
	if waiting != nil {
		m.notify(waiting)
	}
	m.observe(waiting)

	cancel := reg.OnUpdateFound(func() {
		m.log.Debug("update found")
		m.observe(reg.Installing())
	})
	m.mu.Lock()
	m.unsubscribe = append(m.unsubscribe, cancel)
	m.mu.Unlock()
}

// observe subscribes to worker's state changes, once per worker.
func (m *Monitor) observe(worker platform.Worker) {
	if worker == nil {
		return
	}
	id := worker.ID()

	m.mu.Lock()
	if _, ok := m.subscribed[id]; ok {
		m.mu.Unlock()
		m.log.WithFields(logfields.Worker(worker)).Debug("already observing worker")
		return
	}
	// Reserve the slot before subscribing: the platform may deliver a state
	// change, terminal ones included, from within OnStateChange.
	sub := &subscription{}
	m.subscribed[id] = sub
	m.mu.Unlock()

	cancel := worker.OnStateChange(func(state marker.WorkerState) {
		m.handleStateChange(worker, state)
	})

	m.mu.Lock()
	current := m.subscribed[id] == sub
	if current {
		sub.cancel = cancel
	}
	m.mu.Unlock()
	if !current {
		cancel()
		return
	}
	m.log.WithFields(logfields.Worker(worker)).Debug("observing worker")
}

func (m *Monitor) handleStateChange(worker platform.Worker, state marker.WorkerState) {
	log := m.log.WithFields(logrus.Fields{"worker": worker.ID(), "state": state})

	m.mu.Lock()
	initial := m.initial
	if state == marker.WorkerStateActivated {
		// Consumed by the first activation it governs, so that a later update
		// in the same session is never mistaken for the first installation.
		m.initial = false
	}
	m.mu.Unlock()

	if logging.Debuggable {
		log.WithField("initial", initial).Debug("state change")
	}
	if platform.Terminal(state) {
		m.release(worker)
	}

	switch state {
	case marker.WorkerStateInstalled:
		if initial {
			log.Debug("first installation complete")
			return
		}
		log.Info("new version installed")
		m.notify(worker)
	case marker.WorkerStateActivated:
		if initial {
			log.Debug("first installation activated")
			return
		}
		log.WithField("delay", m.delay).Info("new version activated, reloading")
		m.scheduler(m.delay, m.reload)
	}
}

// release drops the subscription of a worker that won't change again. The
// worker stays marked as observed.
func (m *Monitor) release(worker platform.Worker) {
	m.mu.Lock()
	sub, ok := m.subscribed[worker.ID()]
	m.subscribed[worker.ID()] = &subscription{}
	m.mu.Unlock()
	if ok && sub.cancel != nil {
		sub.cancel()
	}
}

func (m *Monitor) notify(worker platform.Worker) {
	if worker == nil {
		return
	}
	m.mu.Lock()
	m.waiting = worker
	m.mu.Unlock()
	m.notifier.Notify(worker)
}

func (m *Monitor) reload() {
	if err := m.reloader.Reload(); err != nil {
		m.log.WithError(err).Error("could not reload page")
	}
}

// SkipWaiting asks the waiting worker to take over. Without a waiting worker
// there is nothing to do.
func (m *Monitor) SkipWaiting() error {
	m.mu.Lock()
	waiting := m.waiting
	m.mu.Unlock()
	if waiting == nil {
		m.log.Debug("no waiting worker to skip")
		return nil
	}
	m.log.WithFields(logfields.Worker(waiting)).Info("skipping waiting")
	return errors.WithMessage(waiting.PostMessage(platform.SkipWaiting()), "could not post skip waiting")
}

// Waiting returns the worker last reported to the host, if any.
func (m *Monitor) Waiting() platform.Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

// InitialInstallation reports whether the monitor is still treating the
// lifecycle as the first-ever installation.
func (m *Monitor) InitialInstallation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initial
}

// Close releases every subscription the Monitor holds.
func (m *Monitor) Close() {
	m.mu.Lock()
	cancels := m.unsubscribe
	m.unsubscribe = nil
	for id, sub := range m.subscribed {
		if sub.cancel != nil {
			cancels = append(cancels, sub.cancel)
		}
		delete(m.subscribed, id)
	}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
