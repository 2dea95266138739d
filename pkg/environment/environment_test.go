package environment

import (
	"fmt"
	"testing"

	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"gotest.tools/assert"
)

type attrs map[string]string

func (a attrs) Get(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

func TestResolve(t *testing.T) {
	assert.Equal(t, Resolve(), marker.DefaultEnvironment)
	assert.Equal(t, Resolve(nil, Static("")), marker.DefaultEnvironment)
	assert.Equal(t, Resolve(Static("Development")), "Development")
	assert.Equal(t, Resolve(Static(" "), Static("Staging"), Static("Development")), "Staging")

	g := attrs{marker.EnvironmentKey: "EnvA"}
	assert.Equal(t, Resolve(Lookup(g, marker.EnvironmentKey), Static("Development")), "EnvA")
	assert.Equal(t, Resolve(Lookup(attrs{}, marker.EnvironmentKey), Static("Development")), "Development")
	assert.Equal(t, Resolve(Lookup(nil, marker.EnvironmentKey)), marker.DefaultEnvironment)
}

func TestVariable(t *testing.T) {
	t.Setenv("SWWATCH_TEST_ENVIRONMENT", "Development")
	assert.Equal(t, Resolve(Variable("SWWATCH_TEST_ENVIRONMENT")), "Development")
	assert.Equal(t, Resolve(Variable("SWWATCH_TEST_UNSET_ENVIRONMENT")), marker.DefaultEnvironment)
}

func TestMatches(t *testing.T) {
	cases := []struct {
		current string
		list    string
		match   bool
	}{
		{"Production", marker.DefaultEnvironmentsForWork, true},
		{"Development", marker.DefaultEnvironmentsForWork, false},
		{"Production", "", true},
		{"Development", "", true},
		{"Production", "Development", false},
		{"Development", "Development", true},
		{"EnvA", "EnvA,EnvB", true},
		{"EnvB", "EnvA, EnvB", true},
		{"EnvC", "EnvA,EnvB", false},
		{"production", "Production", true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s(%s)", tc.current, tc.list), func(t *testing.T) {
			assert.Equal(t, Matches(tc.current, tc.list), tc.match)
		})
	}
}
