package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/andewx/vkframe/config"
	"github.com/andewx/vkframe/gpu/vkgpu"
	"github.com/andewx/vkframe/render"
	"github.com/andewx/vkframe/wsi"
)

type runOptions struct {
	width, height uint32
	shaders       string
	frames        uint64
	watch         bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open a window and render the demo meshes until it is closed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("width") {
				cfg.Window.Width = opts.width
			}
			if f.Changed("height") {
				cfg.Window.Height = opts.height
			}
			if f.Changed("shaders") {
				cfg.Render.ShaderDir = opts.shaders
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, closer, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()
			if opts.watch && root.configPath == "" {
				return errors.New("--watch needs --config")
			}
			return run(cmd.Context(), cfg, root.configPath, opts, log)
		},
	}
	f := cmd.Flags()
	f.Uint32Var(&opts.width, "width", 0, "window width in pixels")
	f.Uint32Var(&opts.height, "height", 0, "window height in pixels")
	f.StringVar(&opts.shaders, "shaders", "", "directory holding vert.spv and frag.spv")
	f.Uint64Var(&opts.frames, "frames", 0, "exit after this many frames (0 runs until closed)")
	f.BoolVar(&opts.watch, "watch", false, "reload the configuration file when it changes")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, cfgPath string, opts *runOptions, log *slog.Logger) error {
	log.Info("starting", "config", cfg.String())
	shaders, err := render.LoadShaders(cfg.Render.ShaderDir)
	if err != nil {
		return err
	}

	if err := wsi.Init(); err != nil {
		return err
	}
	defer wsi.Terminate()
	win, err := wsi.NewWindow(wsi.WindowOptions{
		Title:     cfg.Window.Title,
		Width:     int(cfg.Window.Width),
		Height:    int(cfg.Window.Height),
		Resizable: cfg.Window.Resizable,
	})
	if err != nil {
		return err
	}
	defer win.Destroy()

	icfg, err := instanceConfig(cfg, log, win.RequiredExtensions())
	if err != nil {
		return err
	}
	inst, err := vkgpu.NewInstance(icfg)
	if err != nil {
		return err
	}
	rctx := render.NewContext(inst, log)
	defer func() {
		if err := rctx.Destroy(); err != nil {
			log.Error("context destroy", "err", err)
		}
	}()

	surface, err := win.CreateSurface(inst)
	if err != nil {
		return err
	}
	width, height := win.FramebufferSize()
	rw, err := rctx.NewWindow(render.WindowParams{
		Surface:    surface,
		Width:      width,
		Height:     height,
		Extensions: cfg.App.DeviceExtensions,
		Shaders:    shaders,
		Options: render.Options{
			ClearColor:     cfg.Render.ClearColor,
			Logger:         log,
			ReportInterval: time.Duration(cfg.Render.ReportInterval),
			IdleInterval:   time.Duration(cfg.Render.IdleInterval),
		},
	})
	if err != nil {
		return err
	}
	win.Bind(rw.Events())

	r := rw.Renderer()
	for _, m := range demoMeshes() {
		if _, err := r.RegisterMesh(m); err != nil {
			rw.Close()
			return err
		}
	}
	if err := rw.Start(); err != nil {
		rw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	if opts.watch {
		g.Go(func() error {
			return config.Watch(gctx, cfgPath, log, func(c *config.Config) {
				r.SetClearColor(c.Render.ClearColor)
			})
		})
	}

	pump(ctx, rw, win, opts.frames, cfg.Window.Title)

	cancel()
	loopErr := rw.Close()
	if err := g.Wait(); err != nil {
		log.Warn("config watch stopped", "err", err)
	}
	log.Info("stopped", "frames", r.Frames(), "recreations", r.Recreations(), "timing", r.Timing())
	return loopErr
}

// pump processes window events on the main thread until the render loop returns, the
// window is closed or the frame limit is reached.
func pump(ctx context.Context, rw *render.Window, win *wsi.Window, limit uint64, title string) {
	r := rw.Renderer()
	lastTitle := time.Now()
	for {
		select {
		case <-rw.Done():
			return
		case <-ctx.Done():
			rw.Events().RequestExit()
			return
		default:
		}
		wsi.WaitEvents(0.05)
		if win.ShouldClose() {
			rw.Events().RequestExit()
		}
		if limit > 0 && r.Frames() >= limit {
			rw.Events().RequestExit()
		}
		if rw.Events().Exiting() {
			return
		}
		if time.Since(lastTitle) > time.Second {
			win.SetTitle(fmt.Sprintf("%s (%d frames, %s)", title, r.Frames(), r.State()))
			lastTitle = time.Now()
		}
	}
}
