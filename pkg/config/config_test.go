package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/bottlerocket-os/swwatch/pkg/marker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attrs map[string]string

func (a attrs) Get(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

func TestFromAttributes(t *testing.T) {
	tests := []struct {
		name     string
		attrs    Attributes
		expected func(*Config)
	}{
		{"nil attributes", nil, func(*Config) {}},
		{"no attributes", attrs{}, func(*Config) {}},
		{
			"custom script path",
			attrs{marker.ScriptPathKey: "custom-service-worker.js"},
			func(c *Config) { c.ScriptPath = "custom-service-worker.js" },
		},
		{
			"empty script path keeps default",
			attrs{marker.ScriptPathKey: ""},
			func(*Config) {},
		},
		{
			"no-register by presence",
			attrs{marker.NoRegisterKey: ""},
			func(c *Config) { c.NoRegister = true },
		},
		{
			"every attribute",
			attrs{
				marker.NamespaceKey:           "Toolbelt.Updater",
				marker.ReloadDelayKey:         "50ms",
				marker.LogLevelKey:            "debug",
				marker.EnvironmentKey:         "Staging",
				marker.EnvironmentsForWorkKey: "",
				marker.DispatchEventKey:       "swwatch:waiting",
			},
			func(c *Config) {
				c.Namespace = "Toolbelt.Updater"
				c.ReloadDelay = 50 * time.Millisecond
				c.LogLevel = "debug"
				c.Environment = "Staging"
				c.EnvironmentsForWork = ""
				c.DispatchEvent = "swwatch:waiting"
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expected := Default()
			tc.expected(&expected)
			c, err := FromAttributes(tc.attrs)
			assert.NoError(t, err)
			assert.Equal(t, expected, c)
		})
	}
}

func TestFromAttributesInvalid(t *testing.T) {
	_, err := FromAttributes(attrs{marker.ReloadDelayKey: "soon"})
	assert.Error(t, err)

	_, err = FromAttributes(attrs{marker.ReloadDelayKey: "-1s"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Default()
	assert.NoError(t, c.Validate())

	c.ScriptPath = " "
	assert.Error(t, c.Validate())
	c.NoRegister = true
	assert.NoError(t, c.Validate())

	c = Default()
	c.Namespace = ""
	assert.Error(t, c.Validate())
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
[updater]
register = "sw.js"
no-register = false
reload-delay = "25ms"
environment = "Development"
environments-for-work = "Development, Staging"
`))
	require.NoError(t, err)
	assert.Equal(t, "sw.js", c.ScriptPath)
	assert.False(t, c.NoRegister)
	assert.Equal(t, 25*time.Millisecond, c.ReloadDelay)
	assert.Equal(t, "Development", c.Environment)
	assert.Equal(t, "Development, Staging", c.EnvironmentsForWork)
	assert.Equal(t, marker.DefaultNamespace, c.Namespace)
}

func TestParseEmptyDocument(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`updater = "flat"`))
	assert.Error(t, err)

	_, err = Parse([]byte(`[updater`))
	assert.Error(t, err)

	_, err = Parse([]byte("[updater]\nreload-delay = 10\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swwatch.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte("[updater]\nno-register = true\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.NoRegister)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
