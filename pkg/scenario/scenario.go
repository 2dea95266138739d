// Package scenario replays Service Worker lifecycles against the in-memory
// platform. A scenario is a TOML document: the registration's initial slots,
// an optional [updater] configuration table, and a list of steps playing the
// browser's and the user's part.
package scenario

import (
	"io/ioutil"
	"sort"
	"strings"
	"time"

	"github.com/bottlerocket-os/swwatch/pkg/config"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/bottlerocket-os/swwatch/pkg/platform"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

type Action = string

const (
	// ActionRegister hands a registration over manually; needed when the
	// configuration disables automatic registration.
	ActionRegister Action = "register"
	// ActionUpdateFound fires updatefound on the registration.
	ActionUpdateFound Action = "update-found"
	// ActionNewInstalling places a fresh installing worker in the registration.
	ActionNewInstalling Action = "new-installing"
	// ActionMove moves a worker between slots.
	ActionMove Action = "move"
	// ActionState dispatches a state change to the worker in a slot.
	ActionState Action = "state"
	// ActionHostReady subscribes the host, completing the handshake.
	ActionHostReady Action = "host-ready"
	// ActionSkipWaiting is the user's "update now".
	ActionSkipWaiting Action = "skip-waiting"
	// ActionWait pauses for a duration.
	ActionWait Action = "wait"
	// ActionExpect asserts the observed counters.
	ActionExpect Action = "expect"
)

const defaultWithin = time.Second

// Scenario is a parsed lifecycle script.
type Scenario struct {
	Name string `toml:"name"`
	// Initial maps slots to the state of the worker occupying them when the
	// registration is handed over.
	Initial map[string]string `toml:"initial"`
	Steps   []Step            `toml:"steps"`

	Config config.Config `toml:"-"`
}

// Step is one action of a scenario. Only the fields its action uses are read.
type Step struct {
	Action string `toml:"action"`

	Script string `toml:"script"`
	From   string `toml:"from"`
	To     string `toml:"to"`
	Slot   string `toml:"slot"`
	State  string `toml:"state"`
	For    string `toml:"for"`

	Callbacks int    `toml:"callbacks"`
	Shown     int    `toml:"shown"`
	Reloads   int    `toml:"reloads"`
	Skips     int    `toml:"skips"`
	Within    string `toml:"within"`
}

// Parse reads a scenario document.
func Parse(raw []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := toml.Unmarshal(raw, s); err != nil {
		return nil, errors.Wrap(err, "could not parse scenario")
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		return nil, err
	}
	s.Config = cfg
	return s, s.validate()
}

// Load reads the scenario file at path, naming it after the file when the
// document doesn't.
func Load(path string) (*Scenario, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read scenario %q", path)
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, errors.WithMessagef(err, "scenario %q", path)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

func (s *Scenario) validate() error {
	slots := make([]string, 0, len(s.Initial))
	for slot := range s.Initial {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	for _, slot := range slots {
		if err := checkSlot(slot); err != nil {
			return errors.WithMessage(err, "initial")
		}
		if !platform.Known(s.Initial[slot]) {
			return errors.Errorf("initial: unknown worker state %q in slot %q", s.Initial[slot], slot)
		}
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return errors.WithMessagef(err, "step %d (%s)", i+1, step.Action)
		}
	}
	return nil
}

func (st Step) validate() error {
	switch st.Action {
	case ActionRegister, ActionUpdateFound, ActionNewInstalling, ActionHostReady, ActionSkipWaiting:
		return nil
	case ActionMove:
		if err := checkSlot(st.From); err != nil {
			return err
		}
		return checkSlot(st.To)
	case ActionState:
		if err := checkSlot(st.Slot); err != nil {
			return err
		}
		if !platform.Known(st.State) {
			return errors.Errorf("unknown worker state %q", st.State)
		}
		return nil
	case ActionWait:
		if _, err := time.ParseDuration(st.For); err != nil {
			return errors.Wrap(err, "invalid wait duration")
		}
		return nil
	case ActionExpect:
		if _, err := st.within(); err != nil {
			return err
		}
		if st.Callbacks < 0 || st.Shown < 0 || st.Reloads < 0 || st.Skips < 0 {
			return errors.New("expected counts must not be negative")
		}
		return nil
	case "":
		return errors.New("action must be provided")
	}
	return errors.Errorf("unknown action %q", st.Action)
}

func (st Step) within() (time.Duration, error) {
	if st.Within == "" {
		return defaultWithin, nil
	}
	d, err := time.ParseDuration(st.Within)
	if err != nil {
		return 0, errors.Wrap(err, "invalid within duration")
	}
	return d, nil
}

func checkSlot(slot string) error {
	switch slot {
	case marker.SlotInstalling, marker.SlotWaiting, marker.SlotActive:
		return nil
	}
	return errors.Errorf("unknown slot %q, expected one of %s", slot,
		strings.Join([]string{marker.SlotInstalling, marker.SlotWaiting, marker.SlotActive}, ", "))
}
