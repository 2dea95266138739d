package scenario

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bottlerocket-os/swwatch/pkg/internal/testoutput"
	"github.com/bottlerocket-os/swwatch/pkg/logging"
	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestdataScenarios(t *testing.T) {
	t.Setenv(marker.EnvironmentVariable, "")
	paths, err := filepath.Glob(filepath.Join("testdata", "*.toml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := Load(path)
			require.NoError(t, err)

			res, err := Run(context.Background(), testoutput.Logger(t, logging.New("scenario")), s)
			require.NoError(t, err)
			assert.Equal(t, len(s.Steps), res.Steps)
			// Let any reload still in flight land before the logger goes away.
			time.Sleep(2 * s.Config.ReloadDelay)
		})
	}
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(`
name = "parsed"

[updater]
register = "sw.js"
reload-delay = "5ms"

[initial]
active = "activated"

[[steps]]
action = "expect"
callbacks = 2
reloads = 1
within = "10ms"
`))
	require.NoError(t, err)
	assert.Equal(t, "parsed", s.Name)
	assert.Equal(t, map[string]string{marker.SlotActive: marker.WorkerStateActivated}, s.Initial)
	assert.Equal(t, "sw.js", s.Config.ScriptPath)
	assert.Equal(t, 5*time.Millisecond, s.Config.ReloadDelay)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, Step{Action: ActionExpect, Callbacks: 2, Reloads: 1, Within: "10ms"}, s.Steps[0])
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown slot", "[initial]\nspare = \"installed\"\n"},
		{"unknown state", "[initial]\nactive = \"sleeping\"\n"},
		{"missing action", "[[steps]]\nslot = \"active\"\n"},
		{"unknown action", "[[steps]]\naction = \"uninstall\"\n"},
		{"bad move", "[[steps]]\naction = \"move\"\nfrom = \"installing\"\nto = \"limbo\"\n"},
		{"bad state", "[[steps]]\naction = \"state\"\nslot = \"active\"\nstate = \"done\"\n"},
		{"bad wait", "[[steps]]\naction = \"wait\"\nfor = \"a while\"\n"},
		{"bad within", "[[steps]]\naction = \"expect\"\nwithin = \"soon\"\n"},
		{"negative count", "[[steps]]\naction = \"expect\"\nreloads = -1\n"},
		{"bad config", "[updater]\nreload-delay = \"never\"\n"},
		{"not toml", "[[steps"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestRunFailsOnUnmetExpectation(t *testing.T) {
	s, err := Parse([]byte(`
[initial]
installing = "installing"

[[steps]]
action = "expect"
callbacks = 1
within = "20ms"
`))
	require.NoError(t, err)

	res, err := Run(context.Background(), testoutput.Logger(t, logging.New("scenario")), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (expect)")
	assert.Equal(t, 0, res.Steps)
}

func TestRunFailsOnEmptySlot(t *testing.T) {
	s, err := Parse([]byte(`
[[steps]]
action = "state"
slot = "waiting"
state = "installed"
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), testoutput.Logger(t, logging.New("scenario")), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `slot "waiting" is empty`)
}

func TestRunAll(t *testing.T) {
	var scenarios []*Scenario
	for _, name := range []string{"first-install-then-update.toml", "manual-registration.toml"} {
		s, err := Load(filepath.Join("testdata", name))
		require.NoError(t, err)
		scenarios = append(scenarios, s)
	}

	results, err := RunAll(context.Background(), testoutput.Logger(t, logging.New("scenario")), scenarios, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Reloads)
	assert.Equal(t, 1, results[0].Callbacks)
	assert.Equal(t, 0, results[1].Reloads)
	assert.Equal(t, 1, results[1].Shown)
	time.Sleep(20 * time.Millisecond)
}

func TestRunEnvironmentFromVariable(t *testing.T) {
	t.Setenv(marker.EnvironmentVariable, "Staging")
	s, err := Parse([]byte(`
[updater]
environments-for-work = "Staging"

[initial]
active = "activated"
waiting = "installed"

[[steps]]
action = "host-ready"

[[steps]]
action = "expect"
callbacks = 1
shown = 1
`))
	require.NoError(t, err)

	res, err := Run(context.Background(), testoutput.Logger(t, logging.New("scenario")), s)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Shown)
	time.Sleep(20 * time.Millisecond)
}

func TestRunRepeatedHostReady(t *testing.T) {
	t.Setenv(marker.EnvironmentVariable, "")
	s, err := Parse([]byte(`
[initial]
active = "activated"

[[steps]]
action = "host-ready"

[[steps]]
action = "host-ready"

[[steps]]
action = "new-installing"

[[steps]]
action = "update-found"

[[steps]]
action = "move"
from = "installing"
to = "waiting"

[[steps]]
action = "state"
slot = "waiting"
state = "installed"

[[steps]]
action = "wait"
for = "20ms"

[[steps]]
action = "expect"
callbacks = 1
shown = 1
`))
	require.NoError(t, err)

	res, err := Run(context.Background(), testoutput.Logger(t, logging.New("scenario")), s)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Callbacks)
	time.Sleep(20 * time.Millisecond)
}

func TestRunCanceled(t *testing.T) {
	s, err := Parse([]byte(`
[[steps]]
action = "wait"
for = "1h"
`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, testoutput.Logger(t, logging.New("scenario")), s)
	assert.ErrorIs(t, err, context.Canceled)
}
