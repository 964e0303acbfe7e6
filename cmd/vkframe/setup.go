package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkframe/config"
	"github.com/andewx/vkframe/gpu/vkgpu"
)

// loadConfig reads the configuration file, if any, and applies the persistent flags.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("debug") {
		cfg.App.Debug = opts.debug
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process logger. With a log file configured every record is written
// to stderr and appended to the file. The returned closer closes the file.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open log file")
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("app", cfg.App.Name), closer, nil
}

// instanceConfig translates the app section into vkgpu instance parameters. required are
// the extensions the window system needs; configured extensions are optional.
func instanceConfig(cfg *config.Config, log *slog.Logger, required []string) (vkgpu.Config, error) {
	maj, min, patch, err := config.ParseVersion(cfg.App.Version)
	if err != nil {
		return vkgpu.Config{}, err
	}
	amaj, amin, apatch, err := config.ParseVersion(cfg.App.APIVersion)
	if err != nil {
		return vkgpu.Config{}, err
	}
	return vkgpu.Config{
		AppName:            cfg.App.Name,
		AppVersion:         uint32(vk.MakeVersion(int(maj), int(min), int(patch))),
		EngineName:         cfg.App.Engine,
		APIVersion:         uint32(vk.MakeVersion(int(amaj), int(amin), int(apatch))),
		RequiredExtensions: required,
		Layers:             cfg.EnabledLayers(),
		Extensions:         cfg.App.InstanceExtensions,
		Debug:              cfg.App.Debug,
		Logger:             log,
	}, nil
}
