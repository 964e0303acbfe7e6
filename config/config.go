// Package config holds the settings of a vkframe process: instance and device parameters,
// the window, the renderer and logging. Files are YAML or TOML, chosen by extension.
package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file format.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ValidationLayer is enabled when App.Debug is set and no layers are configured.
const ValidationLayer = "VK_LAYER_KHRONOS_validation"

type Config struct {
	App    App    `yaml:"app" toml:"app"`
	Window Window `yaml:"window" toml:"window"`
	Render Render `yaml:"render" toml:"render"`
	Log    Log    `yaml:"log" toml:"log"`
}

// App configures the instance and the logical device.
type App struct {
	Name       string `yaml:"name" toml:"name"`
	Version    string `yaml:"version" toml:"version"`
	Engine     string `yaml:"engine" toml:"engine"`
	APIVersion string `yaml:"api_version" toml:"api_version"`
	// Debug enables validation layers and the debug report callback.
	Debug              bool     `yaml:"debug" toml:"debug"`
	Layers             []string `yaml:"layers,omitempty" toml:"layers,omitempty"`
	InstanceExtensions []string `yaml:"instance_extensions,omitempty" toml:"instance_extensions,omitempty"`
	DeviceExtensions   []string `yaml:"device_extensions,omitempty" toml:"device_extensions,omitempty"`
}

type Window struct {
	Title     string `yaml:"title" toml:"title"`
	Width     uint32 `yaml:"width" toml:"width"`
	Height    uint32 `yaml:"height" toml:"height"`
	Resizable bool   `yaml:"resizable" toml:"resizable"`
}

type Render struct {
	ShaderDir      string     `yaml:"shader_dir" toml:"shader_dir"`
	ClearColor     [4]float32 `yaml:"clear_color" toml:"clear_color"`
	ReportInterval Duration   `yaml:"report_interval" toml:"report_interval"`
	IdleInterval   Duration   `yaml:"idle_interval" toml:"idle_interval"`
}

type Log struct {
	Level string `yaml:"level" toml:"level"`
	// File, when set, receives a copy of every log record.
	File string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// Duration is a time.Duration written as a string such as "1s" or "250ms".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return errors.Wrapf(err, "duration %q", b)
	}
	*d = Duration(v)
	return nil
}

func Default() *Config {
	return &Config{
		App: App{
			Name:       "vkframe",
			Version:    "1.0.0",
			Engine:     "vkframe",
			APIVersion: "1.0.0",
		},
		Window: Window{
			Title:     "vkframe",
			Width:     1280,
			Height:    720,
			Resizable: true,
		},
		Render: Render{
			ShaderDir:      "shaders",
			ReportInterval: Duration(time.Second),
			IdleInterval:   Duration(10 * time.Millisecond),
		},
		Log: Log{Level: "info"},
	}
}

// FormatOf returns the format of path from its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return "", errors.Errorf("config: unknown file type %q", path)
}

// Load reads path over the defaults, expands ~ in paths and validates the result.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	c := Default()
	if err := c.Decode(data, format); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if err := c.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

// Decode decodes data over c. Unknown keys are an error.
func (c *Config) Decode(data []byte, format Format) error {
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return errors.Wrap(err, "config: yaml")
		}
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			return errors.Wrap(err, "config: toml")
		}
	default:
		return errors.Errorf("config: unknown format %q", format)
	}
	return nil
}

// Encode writes c in format.
func (c *Config) Encode(format Format) ([]byte, error) {
	switch format {
	case YAML:
		b, err := yaml.Marshal(c)
		return b, errors.Wrap(err, "config: yaml")
	case TOML:
		b, err := toml.Marshal(c)
		return b, errors.Wrap(err, "config: toml")
	}
	return nil, errors.Errorf("config: unknown format %q", format)
}

// ExpandPaths replaces a leading ~ in the shader directory and the log file.
func (c *Config) ExpandPaths() error {
	var err error
	if c.Render.ShaderDir, err = homedir.Expand(c.Render.ShaderDir); err != nil {
		return errors.Wrap(err, "config: shader_dir")
	}
	if c.Log.File, err = homedir.Expand(c.Log.File); err != nil {
		return errors.Wrap(err, "config: log file")
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Errorf("config: window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Render.ShaderDir == "" {
		return errors.New("config: shader_dir is empty")
	}
	for i, v := range c.Render.ClearColor {
		if v < 0 || v > 1 {
			return errors.Errorf("config: clear_color[%d] = %v is outside [0, 1]", i, v)
		}
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if _, _, _, err := ParseVersion(c.App.Version); err != nil {
		return errors.Wrap(err, "config: version")
	}
	if _, _, _, err := ParseVersion(c.App.APIVersion); err != nil {
		return errors.Wrap(err, "config: api_version")
	}
	return nil
}

// LogLevel parses Log.Level. Debug mode lowers it to debug.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if c.Log.Level != "" {
		if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
			return 0, errors.Wrapf(err, "config: log level %q", c.Log.Level)
		}
	}
	if c.App.Debug && l > slog.LevelDebug {
		l = slog.LevelDebug
	}
	return l, nil
}

// EnabledLayers returns the instance layers to request.
func (c *Config) EnabledLayers() []string {
	if !c.App.Debug {
		return nil
	}
	if len(c.App.Layers) == 0 {
		return []string{ValidationLayer}
	}
	return c.App.Layers
}

// ParseVersion parses "major", "major.minor" or "major.minor.patch".
func ParseVersion(s string) (major, minor, patch uint32, err error) {
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 3 || s == "" {
		return 0, 0, 0, errors.Errorf("malformed version %q", s)
	}
	var v [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, 0, 0, errors.Errorf("malformed version %q", s)
		}
		v[i] = uint32(n)
	}
	return v[0], v[1], v[2], nil
}

func (c *Config) String() string {
	return fmt.Sprintf("%s %s (%dx%d, shaders %s)", c.App.Name, c.App.Version, c.Window.Width, c.Window.Height, c.Render.ShaderDir)
}
