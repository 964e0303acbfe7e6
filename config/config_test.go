package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Nil(t, c.EnabledLayers())
	l, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)
}

func TestLoadYAML(t *testing.T) {
	path := write(t, t.TempDir(), "vkframe.yaml", `
app:
  name: demo
  debug: true
window:
  width: 640
  height: 480
render:
  shader_dir: /opt/shaders
  clear_color: [0.1, 0.2, 0.3, 1]
  report_interval: 250ms
log:
  level: warn
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", c.App.Name)
	assert.Equal(t, "1.0.0", c.App.Version, "defaults survive")
	assert.Equal(t, uint32(640), c.Window.Width)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, c.Render.ClearColor)
	assert.Equal(t, Duration(250*time.Millisecond), c.Render.ReportInterval)
	assert.Equal(t, []string{ValidationLayer}, c.EnabledLayers())

	l, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l, "debug lowers the level")
}

func TestLoadTOML(t *testing.T) {
	path := write(t, t.TempDir(), "vkframe.toml", `
[app]
name = "demo"
layers = ["VK_LAYER_LUNARG_api_dump"]
debug = true

[window]
width = 800
height = 600

[render]
idle_interval = "5ms"
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(800), c.Window.Width)
	assert.Equal(t, Duration(5*time.Millisecond), c.Render.IdleInterval)
	assert.Equal(t, []string{"VK_LAYER_LUNARG_api_dump"}, c.EnabledLayers())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"unknown.yaml":  "window:\n  depth: 3\n",
		"zero.yaml":     "window:\n  width: 0\n",
		"color.yaml":    "render:\n  clear_color: [2, 0, 0, 1]\n",
		"level.yaml":    "log:\n  level: loud\n",
		"version.toml":  "[app]\nversion = \"one\"\n",
		"duration.toml": "[render]\nreport_interval = \"soon\"\n",
	} {
		_, err := Load(write(t, dir, name, data))
		assert.Error(t, err, name)
	}
	_, err := Load(write(t, dir, "vkframe.json", "{}"))
	assert.Error(t, err)
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyYAML(t *testing.T) {
	c, err := Load(write(t, t.TempDir(), "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Window, c.Window)
}

func TestExpandPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	c := Default()
	c.Render.ShaderDir = "~/shaders"
	c.Log.File = "~/vkframe.log"
	require.NoError(t, c.ExpandPaths())
	assert.Equal(t, filepath.Join(home, "shaders"), c.Render.ShaderDir)
	assert.Equal(t, filepath.Join(home, "vkframe.log"), c.Log.File)
}

func TestEncodeLoad(t *testing.T) {
	dir := t.TempDir()
	c := Default()
	c.Render.ClearColor = [4]float32{0, 0.5, 0, 1}
	c.Render.ReportInterval = Duration(3 * time.Second)
	for _, f := range []Format{YAML, TOML} {
		b, err := c.Encode(f)
		require.NoError(t, err)
		got, err := Load(write(t, dir, "out."+string(f), string(b)))
		require.NoError(t, err, f)
		assert.Equal(t, c, got, f)
	}
}

func TestParseVersion(t *testing.T) {
	major, minor, patch, err := ParseVersion("1.3.250")
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{1, 3, 250}, [3]uint32{major, minor, patch})

	major, minor, patch, err = ParseVersion("2")
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{2, 0, 0}, [3]uint32{major, minor, patch})

	for _, bad := range []string{"", "1.2.3.4", "v1", "1..2"} {
		_, _, _, err := ParseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestWatch(t *testing.T) {
	path := write(t, t.TempDir(), "vkframe.yaml", "window:\n  width: 640\n  height: 480\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, slog.New(slog.DiscardHandler), func(c *Config) { got <- c })
	}()

	// Rewrite until the watcher is installed and reports the change.
	deadline := time.After(5 * time.Second)
	for {
		require.NoError(t, os.WriteFile(path, []byte("window:\n  width: 320\n  height: 240\n"), 0o644))
		select {
		case c := <-got:
			assert.Equal(t, uint32(320), c.Window.Width)
			cancel()
			require.NoError(t, <-done)
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no reload seen")
		}
	}
}
