package scenario

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bottlerocket-os/swwatch/pkg/bridge"
	"github.com/bottlerocket-os/swwatch/pkg/environment"
	"github.com/bottlerocket-os/swwatch/pkg/logging"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/bottlerocket-os/swwatch/pkg/monitor"
	"github.com/bottlerocket-os/swwatch/pkg/platform/memory"
	"github.com/bottlerocket-os/swwatch/pkg/service"
	"github.com/bottlerocket-os/swwatch/pkg/workgroup"
	"github.com/pkg/errors"
)

const pollInterval = 5 * time.Millisecond

// Result is what a scenario run observed.
type Result struct {
	Name string
	// Callbacks counts host notifications.
	Callbacks int
	// Shown counts notifications surfaced in the configured environment.
	Shown   int
	Reloads int
	// Skips counts SKIP_WAITING messages posted to any worker.
	Skips int
	Steps int
}

func (r Result) String() string {
	return fmt.Sprintf("%s: %d steps, %d callbacks (%d shown), %d skip messages, %d reloads",
		r.Name, r.Steps, r.Callbacks, r.Shown, r.Skips, r.Reloads)
}

type run struct {
	log       logging.Logger
	scenario  *Scenario
	reg       *memory.Registration
	container *memory.Container
	monitor   *monitor.Monitor
	service   *service.Service

	callbacks int32
	shown     int32

	mu      sync.Mutex
	workers []*memory.Worker
}

// Run plays s from start to finish. A failing step stops the run; the result
// reflects what was observed up to then.
func Run(ctx context.Context, log logging.Logger, s *Scenario) (Result, error) {
	r, err := newRun(log.WithField("scenario", s.Name), s)
	if err != nil {
		return Result{Name: s.Name}, err
	}
	defer r.monitor.Close()

	if !s.Config.NoRegister {
		if err := r.monitor.Register(ctx, r.container, s.Config.ScriptPath); err != nil {
			return r.result(0), err
		}
	}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return r.result(i), err
		}
		r.log.WithField("step", i+1).Debugf("%s", step.Action)
		if err := r.do(ctx, step); err != nil {
			return r.result(i), errors.WithMessagef(err, "step %d (%s)", i+1, step.Action)
		}
	}
	return r.result(len(s.Steps)), nil
}

// RunAll plays every scenario, at most limit at a time, and returns their
// results in order.
func RunAll(ctx context.Context, log logging.Logger, scenarios []*Scenario, limit int) ([]Result, error) {
	results := make([]Result, len(scenarios))
	group := workgroup.WithContext(ctx, limit)
	for i, s := range scenarios {
		i, s := i, s
		group.Work(func(ctx context.Context) error {
			res, err := Run(ctx, log, s)
			results[i] = res
			return errors.WithMessagef(err, "scenario %q", s.Name)
		})
	}
	return results, group.Wait()
}

func newRun(log logging.Logger, s *Scenario) (*run, error) {
	reg, err := memory.NewRegistration(s.Initial)
	if err != nil {
		return nil, err
	}
	r := &run{
		log:       log,
		scenario:  s,
		reg:       reg,
		container: memory.NewContainer(reg),
	}
	for _, slot := range []string{marker.SlotInstalling, marker.SlotWaiting, marker.SlotActive} {
		if w := reg.Slot(slot); w != nil {
			r.workers = append(r.workers, w)
		}
	}

	b := bridge.New(log.WithField("worker", "bridge"))
	r.monitor, err = monitor.New(log.WithField("worker", "monitor"), b, r.container, s.Config.ReloadDelay)
	if err != nil {
		return nil, err
	}
	r.service, err = service.New(log.WithField("worker", "service"), b, r.monitor,
		environment.Static(s.Config.Environment),
		environment.Variable(marker.EnvironmentVariable))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *run) do(ctx context.Context, st Step) error {
	switch st.Action {
	case ActionRegister:
		script := st.Script
		if script == "" {
			script = r.scenario.Config.ScriptPath
		}
		return r.monitor.Register(ctx, r.container, script)
	case ActionUpdateFound:
		r.reg.DispatchUpdateFound()
	case ActionNewInstalling:
		w := memory.NewWorker(marker.WorkerStateInstalling)
		r.mu.Lock()
		r.workers = append(r.workers, w)
		r.mu.Unlock()
		r.reg.SetInstalling(w)
	case ActionMove:
		return r.reg.MoveStage(st.From, st.To)
	case ActionState:
		w := r.reg.Slot(st.Slot)
		if w == nil {
			return errors.Errorf("slot %q is empty", st.Slot)
		}
		return w.DispatchStateChange(st.State)
	case ActionHostReady:
		r.service.Handshake(func() {
			atomic.AddInt32(&r.callbacks, 1)
			if r.service.Visible(r.scenario.Config.EnvironmentsForWork) {
				atomic.AddInt32(&r.shown, 1)
			}
		})
	case ActionSkipWaiting:
		return r.service.SkipWaiting()
	case ActionWait:
		d, _ := time.ParseDuration(st.For)
		return sleep(ctx, d)
	case ActionExpect:
		return r.expect(ctx, st)
	default:
		return errors.Errorf("unknown action %q", st.Action)
	}
	return nil
}

// expect polls the counters until they match or the step's deadline passes;
// host calls and reloads land asynchronously.
func (r *run) expect(ctx context.Context, st Step) error {
	within, err := st.within()
	if err != nil {
		return err
	}
	want := Result{Callbacks: st.Callbacks, Shown: st.Shown, Reloads: st.Reloads, Skips: st.Skips}
	deadline := time.Now().Add(within)
	for {
		got := r.counters()
		if got == want {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("expected %d callbacks (%d shown), %d skips, %d reloads; observed %d callbacks (%d shown), %d skips, %d reloads",
				want.Callbacks, want.Shown, want.Skips, want.Reloads,
				got.Callbacks, got.Shown, got.Skips, got.Reloads)
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

func (r *run) counters() Result {
	r.mu.Lock()
	skips := 0
	for _, w := range r.workers {
		for _, msg := range w.Messages() {
			if msg.Type == marker.MessageSkipWaiting {
				skips++
			}
		}
	}
	r.mu.Unlock()
	return Result{
		Callbacks: int(atomic.LoadInt32(&r.callbacks)),
		Shown:     int(atomic.LoadInt32(&r.shown)),
		Reloads:   r.container.Reloads(),
		Skips:     skips,
	}
}

func (r *run) result(steps int) Result {
	res := r.counters()
	res.Name = r.scenario.Name
	res.Steps = steps
	return res
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
