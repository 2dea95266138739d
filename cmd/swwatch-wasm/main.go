//go:build js && wasm

package main

import (
	"context"
	"strings"
	"syscall/js"
	"time"

	"github.com/bottlerocket-os/swwatch/pkg/bridge"
	"github.com/bottlerocket-os/swwatch/pkg/config"
	"github.com/bottlerocket-os/swwatch/pkg/environment"
	"github.com/bottlerocket-os/swwatch/pkg/logging"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/bottlerocket-os/swwatch/pkg/monitor"
	"github.com/bottlerocket-os/swwatch/pkg/platform/browser"
	"github.com/bottlerocket-os/swwatch/pkg/service"
	"github.com/pkg/errors"
)

const (
	registerTimeout = 30 * time.Second
	hostTimeout     = 30 * time.Second
)

func main() {
	attrs := browser.ScriptAttributes()
	cfg, err := config.FromAttributes(attrs)

	logging.Set(logging.Plain())
	logging.Set(logging.Split(browser.Console("log"), browser.Console("error")))
	logging.Set(logging.Level(cfg.LogLevel))
	log := logging.New("main")
	if err != nil {
		log.WithError(err).Error("invalid configuration, not starting")
		return
	}
	if logging.Debuggable {
		log.Info("low-level logging.Debuggable is enabled in this build")
	}

	container, err := browser.New(logging.New("platform"))
	if err != nil {
		log.WithError(err).Warn("service workers unavailable, not starting")
		return
	}

	b := bridge.New(logging.New("bridge"))
	mon, err := monitor.New(logging.New("monitor"), b, container, cfg.ReloadDelay)
	if err != nil {
		log.WithError(err).Error("could not set up monitor")
		return
	}
	svc, err := service.New(logging.New("service"), b, mon,
		environment.Lookup(attrs, marker.EnvironmentKey))
	if err != nil {
		log.WithError(err).Error("could not set up service")
		return
	}

	if err := export(cfg.Namespace, exports(cfg, mon, svc)); err != nil {
		log.WithError(err).Error("could not export entry points")
		return
	}
	log.WithField("namespace", cfg.Namespace).Debug("entry points exported")

	if !cfg.NoRegister {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
			defer cancel()
			if err := mon.Register(ctx, container, cfg.ScriptPath); err != nil {
				log.WithError(err).Error("registration failed")
			}
		}()
	}

	select {}
}

func exports(cfg config.Config, mon *monitor.Monitor, svc *service.Service) map[string]interface{} {
	log := logging.New("exports")
	return map[string]interface{}{
		marker.ExportHandleRegistration: js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
			if len(args) < 1 {
				log.Warn("handleRegistration called without a registration")
				return nil
			}
			reg, err := browser.WrapRegistration(args[0])
			if err != nil {
				log.WithError(err).Warn("ignoring registration")
				return nil
			}
			mon.HandleRegistration(reg)
			return nil
		}),
		marker.ExportSetToBeReady: js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
			if len(args) < 1 {
				log.Warn("setToBeReady called without a host reference")
				return nil
			}
			host, err := browser.NewHost(args[0])
			if err != nil {
				log.WithError(err).Warn("ignoring host reference")
				return nil
			}
			svc.Handshake(func() {
				ctx, cancel := context.WithTimeout(context.Background(), hostTimeout)
				defer cancel()
				if err := host.Invoke(ctx, marker.HostMethodNextVersionIsWaiting); err != nil {
					log.WithError(err).Error("host notification failed")
				}
				if cfg.DispatchEvent != "" && svc.Visible(cfg.EnvironmentsForWork) {
					dispatch(cfg.DispatchEvent)
				}
			})
			return nil
		}),
		marker.ExportSkipWaiting: js.FuncOf(func(_ js.Value, _ []js.Value) interface{} {
			return browser.Promise(func() (interface{}, error) {
				if err := svc.SkipWaiting(); err != nil {
					return nil, err
				}
				return true, nil
			})
		}),
	}
}

// export publishes fns under the dotted namespace on the global object,
// creating intermediate objects as needed.
func export(namespace string, fns map[string]interface{}) error {
	target := js.Global()
	for _, part := range strings.Split(namespace, ".") {
		if part == "" {
			return errors.Errorf("invalid namespace %q", namespace)
		}
		next := target.Get(part)
		if next.IsNull() || next.IsUndefined() {
			next = js.Global().Get("Object").New()
			target.Set(part, next)
		} else if next.Type() != js.TypeObject {
			return errors.Errorf("namespace %q is taken by a %s", part, next.Type())
		}
		target = next
	}
	for name, fn := range fns {
		target.Set(name, fn)
	}
	return nil
}

func dispatch(event string) {
	ev := js.Global().Get("CustomEvent").New(event)
	js.Global().Call("dispatchEvent", ev)
}
