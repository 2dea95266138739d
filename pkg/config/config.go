package config

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"
	"time"

	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config is read once at startup. None of it changes how the lifecycle is
// interpreted; it decides what gets registered and how the host is reached.
type Config struct {
	// ScriptPath is the worker script registered automatically.
	ScriptPath string
	// NoRegister leaves registration to the page, which hands its
	// registration over through handleRegistration.
	NoRegister bool
	// Namespace is the dotted global the JS entry points are exported under.
	Namespace string
	// ReloadDelay is the grace period between activation and page reload.
	ReloadDelay time.Duration
	LogLevel    string
	// Environment names the host environment; empty defers to other
	// providers.
	Environment string
	// EnvironmentsForWork lists, comma separated, where update notifications
	// are surfaced. Empty means everywhere.
	EnvironmentsForWork string
	// DispatchEvent, when set, is the DOM event raised on window for a
	// waiting version.
	DispatchEvent string
}

// Default returns the configuration used when nothing is given.
func Default() Config {
	return Config{
		ScriptPath:          marker.DefaultScriptPath,
		Namespace:           marker.DefaultNamespace,
		ReloadDelay:         marker.DefaultReloadDelay,
		LogLevel:            marker.DefaultLogLevel,
		EnvironmentsForWork: marker.DefaultEnvironmentsForWork,
	}
}

// Validate reports configuration that can't be used.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ScriptPath) == "" && !c.NoRegister:
		return errors.New("worker script path must be provided unless registration is disabled")
	case strings.TrimSpace(c.Namespace) == "":
		return errors.New("namespace must be provided")
	case c.ReloadDelay < 0:
		return errors.Errorf("reload delay must not be negative, got %s", c.ReloadDelay)
	}
	return nil
}

// Attributes is a source of string attributes, such as the hosting <script>
// element.
type Attributes interface {
	Get(name string) (string, bool)
}

// FromAttributes overlays attrs onto the defaults. no-register is a presence
// flag: any value, including empty, disables registration.
func FromAttributes(attrs Attributes) (Config, error) {
	c := Default()
	if attrs == nil {
		return c, nil
	}
	if v, ok := attrs.Get(marker.ScriptPathKey); ok && v != "" {
		c.ScriptPath = v
	}
	if _, ok := attrs.Get(marker.NoRegisterKey); ok {
		c.NoRegister = true
	}
	if v, ok := attrs.Get(marker.NamespaceKey); ok && v != "" {
		c.Namespace = v
	}
	if v, ok := attrs.Get(marker.ReloadDelayKey); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, errors.Wrapf(err, "invalid %s", marker.ReloadDelayKey)
		}
		c.ReloadDelay = d
	}
	if v, ok := attrs.Get(marker.LogLevelKey); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := attrs.Get(marker.EnvironmentKey); ok {
		c.Environment = v
	}
	if v, ok := attrs.Get(marker.EnvironmentsForWorkKey); ok {
		c.EnvironmentsForWork = v
	}
	if v, ok := attrs.Get(marker.DispatchEventKey); ok {
		c.DispatchEvent = v
	}
	return c, c.Validate()
}

// table exposes the [updater] table of a TOML document as Attributes. A false
// boolean reads as absent, so "no-register = false" keeps registration on.
type table struct {
	tree *toml.Tree
}

func (t table) Get(name string) (string, bool) {
	if t.tree == nil || !t.tree.Has(name) {
		return "", false
	}
	switch v := t.tree.Get(name).(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), v
	default:
		return fmt.Sprint(v), true
	}
}

// Parse reads a TOML document's [updater] table over the defaults.
func Parse(raw []byte) (Config, error) {
	tree, err := toml.LoadBytes(raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "could not parse configuration")
	}
	var updater *toml.Tree
	if v := tree.Get("updater"); v != nil {
		t, ok := v.(*toml.Tree)
		if !ok {
			return Config{}, errors.New("updater must be a table")
		}
		updater = t
	}
	return FromAttributes(table{updater})
}

// Load reads the TOML configuration file at path.
func Load(path string) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "could not read configuration %q", path)
	}
	return Parse(raw)
}
