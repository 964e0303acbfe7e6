package render

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/andewx/vkframe/gpu"
)

// WindowParams describes the window system side of a new window.
type WindowParams struct {
	// Surface is the native surface of the window. The window takes ownership of it.
	Surface gpu.Surface
	// Width and Height are the window size at creation.
	Width, Height uint32
	// Extensions are device extensions to enable in addition to the swapchain extension.
	Extensions []string
	Shaders    Shaders
	Options    Options
}

// Window binds one native surface to its own device and render loop. The render loop runs
// on a goroutine locked to an OS thread; the window thread only writes EventStates and
// calls Recreate and Close.
type Window struct {
	ctx      *Context
	dev      *Device
	surface  *Surface
	renderer *Renderer
	events   *EventStates

	group errgroup.Group
	done  chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
	err     error
}

// NewWindow selects a device for p.Surface and creates its frame resource set. On error
// every object created so far, including the surface, is destroyed.
func (c *Context) NewWindow(p WindowParams) (*Window, error) {
	pd, family, err := SelectPhysicalDevice(c.inst, p.Surface)
	if err != nil {
		c.inst.DestroySurface(p.Surface)
		return nil, err
	}
	dev, err := CreateDevice(c.inst, pd, family, p.Extensions)
	if err != nil {
		c.inst.DestroySurface(p.Surface)
		return nil, err
	}
	surface, err := NewSurface(c.inst, p.Surface, pd, family)
	if err != nil {
		dev.Destroy()
		c.inst.DestroySurface(p.Surface)
		return nil, err
	}
	if p.Options.Logger == nil {
		p.Options.Logger = c.log
	}
	events := NewEventStates(p.Width, p.Height)
	r, err := NewRenderer(dev, surface, events, p.Shaders, p.Options)
	if err != nil {
		surface.Destroy()
		dev.Destroy()
		return nil, err
	}
	c.windows.Add(1)
	info := c.inst.DeviceInfo(pd)
	c.log.Info("window created", "device", info.Name, "queue_family", family, "state", r.State())
	return &Window{
		ctx:      c,
		dev:      dev,
		surface:  surface,
		renderer: r,
		events:   events,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the render loop on its own goroutine.
func (w *Window) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return ErrStarted
	}
	w.started = true
	w.group.Go(func() error {
		defer close(w.done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		return w.renderer.Run()
	})
	return nil
}

// Close stops the render loop, waits for it to return and destroys the renderer, the
// surface and the device, in that order. It returns the loop's fatal error, if any.
func (w *Window) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return w.err
	}
	w.closed = true
	started := w.started
	w.mu.Unlock()

	w.events.RequestExit()
	var err error
	if started {
		err = w.group.Wait()
	} else {
		close(w.done)
	}
	w.renderer.Destroy()
	w.surface.Destroy()
	w.dev.Destroy()
	w.ctx.windows.Add(-1)

	w.mu.Lock()
	w.err = errors.WithMessage(err, "render loop")
	w.mu.Unlock()
	w.ctx.log.Info("window closed", "frames", w.renderer.Frames(), "recreations", w.renderer.Recreations())
	return w.err
}

// Done is closed when the render loop has returned.
func (w *Window) Done() <-chan struct{} {
	return w.done
}

// Recreate asks the render loop to rebuild the swapchain.
func (w *Window) Recreate() {
	w.renderer.Recreate()
}

func (w *Window) Events() *EventStates { return w.events }
func (w *Window) Renderer() *Renderer { return w.renderer }
func (w *Window) Device() *Device { return w.dev }
func (w *Window) Surface() *Surface { return w.surface }
