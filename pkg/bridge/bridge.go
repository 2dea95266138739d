// Package bridge decouples "a new version is waiting" from "the host is able
// to take the call". Notifications issued before the host announces itself
// are held and delivered, in order, once it does.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/bottlerocket-os/swwatch/pkg/internal/logfields"
	"github.com/bottlerocket-os/swwatch/pkg/logging"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/bottlerocket-os/swwatch/pkg/platform"
	"github.com/pkg/errors"
)

const (
	// invokeTimeout bounds a single host call so one hung call can't hold
	// back every later notification.
	invokeTimeout = 30 * time.Second
)

// Host receives calls from the bridge once it has announced readiness.
type Host interface {
	// Invoke calls the host's method by name.
	Invoke(ctx context.Context, method string) error
}

// HostFunc adapts a function to Host.
type HostFunc func(ctx context.Context, method string) error

func (fn HostFunc) Invoke(ctx context.Context, method string) error {
	return fn(ctx, method)
}

// Bridge delivers "next version is waiting" notifications to the Host.
type Bridge struct {
	log   logging.Logger
	ready *Token

	mu   sync.Mutex
	tail chan struct{}
}

// New creates a Bridge awaiting its host.
func New(log logging.Logger) *Bridge {
	tail := make(chan struct{})
	close(tail)
	return &Bridge{
		log:   log,
		ready: NewToken(),
		tail:  tail,
	}
}

// SetHostReady completes the readiness handshake. Calls after the first are
// ignored.
func (b *Bridge) SetHostReady(host Host) {
	if host == nil {
		b.log.Warn("ignoring readiness from nil host")
		return
	}
	if !b.ready.Resolve(host) {
		b.log.Debug("host already ready, ignoring repeated readiness")
		return
	}
	b.log.Info("host ready")
}

// Ready reports whether the host has completed the handshake.
func (b *Bridge) Ready() bool {
	return b.ready.Resolved()
}

// Notify queues a notification that worker is waiting to take over. It never
// blocks; the returned channel is closed once the host call has been made (or
// has failed). A nil worker is ignored.
func (b *Bridge) Notify(worker platform.Worker) <-chan struct{} {
	done := make(chan struct{})
	if worker == nil {
		close(done)
		return done
	}

	b.mu.Lock()
	prev := b.tail
	b.tail = done
	b.mu.Unlock()

	log := b.log.WithFields(logfields.Worker(worker))
	if !b.ready.Resolved() {
		log.Debug("host not ready, holding notification")
	}

	go func() {
		defer close(done)
		<-b.ready.Done()
		<-prev
		if err := b.invoke(); err != nil {
			log.WithError(err).Error("could not notify host of waiting version")
			return
		}
		log.Info("notified host of waiting version")
	}()
	return done
}

func (b *Bridge) invoke() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), invokeTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("host call panicked: %v", r)
		}
	}()
	return errors.WithMessage(b.ready.Host().Invoke(ctx, marker.HostMethodNextVersionIsWaiting), "host call")
}
