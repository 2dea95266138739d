//go:build js && wasm

// Package browser binds the platform contract to the browser's Service Worker
// API through syscall/js.
package browser

import (
	"context"
	"strconv"
	"sync/atomic"
	"syscall/js"

	"github.com/bottlerocket-os/swwatch/pkg/logging"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/bottlerocket-os/swwatch/pkg/platform"
	"github.com/pkg/errors"
)

var (
	_ platform.Container    = (*Container)(nil)
	_ platform.Registration = (*Registration)(nil)
	_ platform.Worker       = (*Worker)(nil)
)

// idProperty tags each ServiceWorker object with a stable identity; the
// browser hands out the same object for the same worker.
const idProperty = "__swwatchWorkerID"

var nextID uint64

// Container wraps navigator.serviceWorker.
type Container struct {
	log       logging.Logger
	container js.Value
	location  js.Value
}

// New binds to the page's navigator.serviceWorker.
func New(log logging.Logger) (*Container, error) {
	global := js.Global()
	navigator := global.Get("navigator")
	if !present(navigator) {
		return nil, errors.New("navigator is unavailable")
	}
	container := navigator.Get("serviceWorker")
	if !present(container) {
		return nil, errors.New("service workers are not supported in this context")
	}
	return &Container{
		log:       log,
		container: container,
		location:  global.Get("location"),
	}, nil
}

func (c *Container) Register(ctx context.Context, scriptURL string) (platform.Registration, error) {
	c.log.WithField("script", scriptURL).Debug("registering service worker")
	v, err := await(ctx, c.container.Call("register", scriptURL))
	if err != nil {
		return nil, err
	}
	return WrapRegistration(v)
}

func (c *Container) Reload() error {
	if !present(c.location) {
		return errors.New("location is unavailable")
	}
	c.location.Call("reload")
	return nil
}

// Registration wraps a ServiceWorkerRegistration.
type Registration struct {
	v js.Value
}

// WrapRegistration adapts a JS ServiceWorkerRegistration, such as one handed
// over by the page.
func WrapRegistration(v js.Value) (*Registration, error) {
	if !present(v) || v.Type() != js.TypeObject {
		return nil, errors.New("not a service worker registration")
	}
	return &Registration{v: v}, nil
}

func (r *Registration) Installing() platform.Worker {
	return wrapWorker(r.v.Get(marker.SlotInstalling))
}

func (r *Registration) Waiting() platform.Worker {
	return wrapWorker(r.v.Get(marker.SlotWaiting))
}

func (r *Registration) Active() platform.Worker {
	return wrapWorker(r.v.Get(marker.SlotActive))
}

func (r *Registration) OnUpdateFound(fn func()) func() {
	return listen(r.v, "updatefound", func(js.Value) { fn() })
}

// Worker wraps a ServiceWorker.
type Worker struct {
	v  js.Value
	id string
}

func wrapWorker(v js.Value) platform.Worker {
	if !present(v) {
		return nil
	}
	id := v.Get(idProperty)
	if !present(id) {
		id = js.ValueOf("sw-" + strconv.FormatUint(atomic.AddUint64(&nextID, 1), 10))
		v.Set(idProperty, id)
	}
	return &Worker{v: v, id: id.String()}
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) State() marker.WorkerState {
	return w.v.Get("state").String()
}

func (w *Worker) OnStateChange(fn func(marker.WorkerState)) func() {
	return listen(w.v, "statechange", func(js.Value) {
		fn(w.State())
	})
}

func (w *Worker) PostMessage(msg platform.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("postMessage failed: %v", r)
		}
	}()
	w.v.Call("postMessage", map[string]interface{}{"type": msg.Type})
	return nil
}

// listen adds an event listener and returns its removal. The JS callback is
// released on removal.
func listen(target js.Value, event string, fn func(js.Value)) func() {
	cb := js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
		ev := js.Undefined()
		if len(args) > 0 {
			ev = args[0]
		}
		fn(ev)
		return nil
	})
	target.Call("addEventListener", event, cb)
	released := int32(0)
	return func() {
		if !atomic.CompareAndSwapInt32(&released, 0, 1) {
			return
		}
		target.Call("removeEventListener", event, cb)
		cb.Release()
	}
}

func present(v js.Value) bool {
	return !v.IsNull() && !v.IsUndefined()
}
