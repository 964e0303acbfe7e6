package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/vkframe/config"
	"github.com/andewx/vkframe/gpu"
	"github.com/andewx/vkframe/render"
)

func TestDemoMeshes(t *testing.T) {
	meshes := demoMeshes()
	require.Len(t, meshes, 2)

	cube := meshes[0]
	assert.Len(t, cube.Vertices, 24)
	assert.Len(t, cube.Indices, 36)
	assert.Equal(t, render.Perspective, cube.Projection)
	for _, v := range cube.Vertices {
		for i := 0; i < 3; i++ {
			assert.Equal(t, float32(0.5), abs(v.Pos[i]))
		}
		assert.Equal(t, float32(1), v.Pos[3])
	}

	quad := meshes[1]
	assert.Equal(t, render.Orthographic, quad.Projection)
	assert.Equal(t, float32(1.5), quad.Transform[3][0])
	for _, m := range meshes {
		for _, idx := range m.Indices {
			assert.Less(t, int(idx), len(m.Vertices))
		}
	}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestQueueFlags(t *testing.T) {
	assert.Equal(t, "none", queueFlags(0))
	assert.Equal(t, "graphics", queueFlags(gpu.QueueGraphics))
	assert.Equal(t, "graphics|compute|transfer", queueFlags(gpu.QueueGraphics|gpu.QueueCompute|gpu.QueueTransfer))
}

func TestLoadConfigFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vkframe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\nwindow:\n  width: 800\n  height: 600\n"), 0o644))

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--config", path, "--debug"}))

	opts := &rootOptions{configPath: path, debug: true}
	cfg, err := loadConfig(root, opts)
	require.NoError(t, err)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.True(t, cfg.App.Debug)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level, "debug lowers the configured warn level")

	cfg, err = loadConfig(newRootCmd(), &rootOptions{configPath: path, debug: true})
	require.NoError(t, err)
	assert.False(t, cfg.App.Debug, "unset flags leave the file value")
}

func TestNewLoggerFile(t *testing.T) {
	cfg, err := loadConfig(newRootCmd(), &rootOptions{})
	require.NoError(t, err)
	cfg.Log.File = filepath.Join(t.TempDir(), "vkframe.log")

	log, closer, err := newLogger(cfg)
	require.NoError(t, err)
	log.Info("hello", "frames", 3)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, string(data), "frames=3")
}

func TestInstanceConfig(t *testing.T) {
	cfg, err := loadConfig(newRootCmd(), &rootOptions{})
	require.NoError(t, err)
	cfg.App.Debug = true
	cfg.App.InstanceExtensions = []string{"VK_EXT_debug_utils"}

	icfg, err := instanceConfig(cfg, slog.Default(), []string{"VK_KHR_surface"})
	require.NoError(t, err)
	assert.Equal(t, []string{"VK_KHR_surface"}, icfg.RequiredExtensions)
	assert.Equal(t, []string{"VK_EXT_debug_utils"}, icfg.Extensions)
	assert.NotEmpty(t, icfg.Layers)
	assert.True(t, icfg.Debug)
	assert.Equal(t, cfg.App.Name, icfg.AppName)
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vkframe.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\nwidth = 640\nheight = 480\n"), 0o644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--config", path, "--format", "toml"})
	require.NoError(t, root.Execute())

	cfg := config.Default()
	require.NoError(t, cfg.Decode(out.Bytes(), config.TOML))
	assert.Equal(t, uint32(640), cfg.Window.Width)
	assert.Equal(t, uint32(480), cfg.Window.Height)

	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--format", "json"})
	assert.Error(t, root.Execute())
}
