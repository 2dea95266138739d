// Package environment resolves the name of the host environment (Production,
// Development, ...) from whichever source the running target provides, and
// decides whether update notifications are surfaced in it.
package environment

import (
	"os"
	"strings"

	"github.com/bottlerocket-os/swwatch/pkg/marker"
)

// Provider is one possible source of the environment name.
type Provider interface {
	// EnvironmentName returns the name and whether this source knows it.
	EnvironmentName() (string, bool)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() (string, bool)

func (fn ProviderFunc) EnvironmentName() (string, bool) {
	return fn()
}

// Static always provides name, unless it's empty.
func Static(name string) Provider {
	return ProviderFunc(func() (string, bool) {
		name := strings.TrimSpace(name)
		return name, name != ""
	})
}

// Variable reads the name from the process environment variable key.
func Variable(key string) Provider {
	return ProviderFunc(func() (string, bool) {
		v, ok := os.LookupEnv(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	})
}

// Getter looks up a named attribute.
type Getter interface {
	Get(name string) (string, bool)
}

// Lookup reads the name from the attribute key of g.
func Lookup(g Getter, key string) Provider {
	return ProviderFunc(func() (string, bool) {
		if g == nil {
			return "", false
		}
		v, ok := g.Get(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	})
}

// Resolve returns the first name offered by providers, in order, or the
// default environment when none offers one.
func Resolve(providers ...Provider) string {
	for _, p := range providers {
		if p == nil {
			continue
		}
		if name, ok := p.EnvironmentName(); ok {
			return name
		}
	}
	return marker.DefaultEnvironment
}

// Matches reports whether current is one of the comma separated environments
// in list. An empty list matches every environment.
func Matches(current, list string) bool {
	if strings.TrimSpace(list) == "" {
		return true
	}
	for _, env := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(env), strings.TrimSpace(current)) {
			return true
		}
	}
	return false
}
