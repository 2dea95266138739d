// Package service is the host side of the handshake: it receives "next version
// is waiting" calls from the bridge and fans them out to subscribers, and
// forwards the user's "update now" action back to the monitor.
package service

import (
	"context"
	"sync"

	"github.com/bottlerocket-os/swwatch/pkg/bridge"
	"github.com/bottlerocket-os/swwatch/pkg/environment"
	"github.com/bottlerocket-os/swwatch/pkg/logging"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/pkg/errors"
)

var _ bridge.Host = (*Service)(nil)

// Handler is called when a new version is waiting.
type Handler func()

type readiness interface {
	SetHostReady(bridge.Host)
}

type skipper interface {
	SkipWaiting() error
}

// Service is the host-side endpoint of the update flow.
type Service struct {
	log       logging.Logger
	ready     readiness
	skipper   skipper
	providers []environment.Provider

	mu          sync.Mutex
	handshaken  bool
	hostBound   bool
	handlers    map[int]Handler
	nextHandler int

	envOnce sync.Once
	env     string
}

// New creates a Service that announces itself through r on first subscription
// and skips waiting through s. The environment name is resolved lazily from
// providers.
func New(log logging.Logger, r readiness, s skipper, providers ...environment.Provider) (*Service, error) {
	switch {
	case r == nil:
		return nil, errors.New("readiness target must be provided")
	case s == nil:
		return nil, errors.New("skip target must be provided")
	}
	return &Service{
		log:       log,
		ready:     r,
		skipper:   s,
		providers: providers,
		handlers:  map[int]Handler{},
	}, nil
}

// Subscribe registers h for "next version is waiting". The first subscription
// completes the readiness handshake; notifications raised before then are
// delivered to it.
func (s *Service) Subscribe(h Handler) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextHandler
	s.nextHandler++
	s.handlers[id] = h
	first := !s.handshaken
	s.handshaken = true
	s.mu.Unlock()

	if first {
		s.log.Debug("announcing readiness")
		s.ready.SetHostReady(s)
	}
	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// Handshake binds the host's handler: the first call subscribes h and
// completes the readiness handshake, later calls are ignored so that the host
// hears of each update once however often it announces itself. It reports
// whether h was bound.
func (s *Service) Handshake(h Handler) bool {
	s.mu.Lock()
	bound := s.hostBound
	s.hostBound = true
	s.mu.Unlock()

	if bound {
		s.log.Debug("host already bound, ignoring repeated readiness")
		return false
	}
	s.Subscribe(h)
	return true
}

// Invoke dispatches a call from the bridge.
func (s *Service) Invoke(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch method {
	case marker.HostMethodNextVersionIsWaiting:
		s.NextVersionIsWaiting()
		return nil
	}
	return errors.Errorf("no host method named %q", method)
}

// NextVersionIsWaiting notifies every subscriber.
func (s *Service) NextVersionIsWaiting() {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.handlers))
	for i := 0; i < s.nextHandler; i++ {
		if h, ok := s.handlers[i]; ok {
			handlers = append(handlers, h)
		}
	}
	s.mu.Unlock()

	s.log.WithField("subscribers", len(handlers)).Debug("next version is waiting")
	for _, h := range handlers {
		h()
	}
}

// SkipWaiting lets the waiting version take over.
func (s *Service) SkipWaiting() error {
	return s.skipper.SkipWaiting()
}

// HostEnvironment is the name of the environment the host runs in, resolved
// once.
func (s *Service) HostEnvironment() string {
	s.envOnce.Do(func() {
		s.env = environment.Resolve(s.providers...)
		s.log.WithField("environment", s.env).Debug("resolved host environment")
	})
	return s.env
}

// Visible reports whether update notifications should be surfaced given the
// comma separated environments they are meant for.
func (s *Service) Visible(environmentsForWork string) bool {
	return environment.Matches(s.HostEnvironment(), environmentsForWork)
}
