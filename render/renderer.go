package render

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/andewx/vkframe/gpu"
	"github.com/andewx/vkframe/internal/metrics"
)

// State is the state of the render loop.
type State int32

const (
	// Idle means the window is minimized; nothing is acquired or presented.
	Idle State = iota
	// Running draws and presents one frame per step.
	Running
	// Recreating means the next step rebuilds the swapchain generation.
	Recreating
	// Stopped is terminal, entered on exit or on a fatal error.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Recreating:
		return "recreating"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

const DefaultIdleInterval = 10 * time.Millisecond

type Options struct {
	// ClearColor is the RGBA color every frame starts from.
	ClearColor [4]float32
	Logger     *slog.Logger
	// ReportInterval is how often frame timing is logged.
	ReportInterval time.Duration
	// IdleInterval is how long Run sleeps between steps while minimized.
	IdleInterval time.Duration
}

// Renderer owns the frame resource set of one window and runs the render loop over it.
//
// Every exported method takes the renderer lock, so the loop body and requests from the
// window thread never overlap.
type Renderer struct {
	mu      sync.Mutex
	dev     *Device
	surface *Surface
	events  *EventStates
	log     *slog.Logger
	opts    Options
	timing  *metrics.Frames

	sync   *frameSync
	pipe   *pipelineSet
	gen    *generation
	meshes []*registeredMesh
	camera *Camera

	state       State
	size        gpu.Extent2D
	viewport    gpu.Viewport
	frames      uint64
	recreations uint64
	err         error
	destroyed   bool
}

// NewRenderer creates the frame resource set for surface on dev. When events reports a
// positive size the first swapchain generation is built immediately and the renderer
// starts Running, otherwise it starts Idle.
func NewRenderer(dev *Device, surface *Surface, events *EventStates, shaders Shaders, opts Options) (*Renderer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	r := &Renderer{
		dev:     dev,
		surface: surface,
		events:  events,
		log:     opts.Logger,
		opts:    opts,
		timing:  metrics.New(opts.Logger, opts.ReportInterval),
		camera:  NewCamera(),
		state:   Idle,
	}
	var err error
	if r.sync, err = newFrameSync(dev); err != nil {
		return nil, err
	}
	if r.pipe, err = newPipelineSet(dev, r.sync, surface.Format().Format, shaders); err != nil {
		r.sync.destroy(dev.gpu)
		return nil, err
	}
	w, h := events.Size()
	size := gpu.Extent2D{Width: w, Height: h}
	if !size.IsZero() {
		err := r.build(size)
		switch {
		case err == nil:
			r.state = Running
		case errors.Is(err, ErrZeroExtent):
		default:
			r.releaseAll()
			return nil, err
		}
	}
	r.log.Debug("renderer created", "state", r.state, "size", size, "format", surface.Format().Format)
	return r, nil
}

// build creates a swapchain generation for size and prepares it for drawing.
func (r *Renderer) build(size gpu.Extent2D) error {
	if err := r.surface.Refresh(); err != nil {
		return err
	}
	gen, err := newGeneration(r.dev, r.surface, r.pipe.renderPass, size)
	if err != nil {
		return err
	}
	r.gen = gen
	if err := r.sync.runSetup(r.dev, depthTransition{image: gen.depth.image}); err != nil {
		return errors.Wrap(err, "depth layout transition")
	}
	extent := gen.swapchain.Extent()
	r.viewport = gpu.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1,
	}
	r.camera.SetExtent(extent)
	if err := r.pipe.setProjectionView(r.dev.gpu, r.camera.ProjectionView(Perspective)); err != nil {
		return errors.Wrap(err, "write uniform buffer")
	}
	r.size = size
	return nil
}

// recreate rebuilds the swapchain generation. The device is idled before anything it may
// still use is destroyed.
func (r *Renderer) recreate(size gpu.Extent2D) error {
	d := r.dev.gpu
	if err := d.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle")
	}
	if r.gen != nil {
		r.gen.destroy(d)
		r.gen = nil
	}
	if err := r.build(size); err != nil {
		return err
	}
	r.recreations++
	sc := r.gen.swapchain
	r.log.Info("swapchain recreated",
		"extent", sc.Extent(),
		"images", len(r.gen.images),
		"present_mode", sc.PresentMode(),
		"recreations", r.recreations)
	return nil
}

// Step runs one iteration of the render loop and returns the resulting state.
func (r *Renderer) Step() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Stopped {
		return Stopped
	}
	if r.events.Exiting() {
		r.log.Debug("render loop exiting", "frames", r.frames)
		r.state = Stopped
		return Stopped
	}

	w, h := r.events.Size()
	size := gpu.Extent2D{Width: w, Height: h}
	if size.IsZero() {
		if r.state != Idle {
			r.log.Debug("window minimized", "from", r.state)
		}
		r.state = Idle
		return Idle
	}
	switch r.state {
	case Idle:
		r.state = Recreating
	case Running:
		if size != r.size {
			r.state = Recreating
		}
	}

	if r.state == Recreating {
		err := r.recreate(size)
		if errors.Is(err, ErrZeroExtent) {
			r.log.Debug("surface has zero extent", "requested", size)
			r.state = Idle
			return Idle
		}
		if err != nil {
			r.fail(errors.Wrap(err, "recreate swapchain"))
			return Stopped
		}
		r.state = Running
	}

	if err := r.frame(); err != nil {
		if errors.Is(err, gpu.ErrOutOfDate) {
			r.log.Debug("swapchain out of date", "err", err)
			r.state = Recreating
			return Recreating
		}
		r.fail(err)
	}
	return r.state
}

// frame acquires, records, submits and presents one frame.
func (r *Renderer) frame() error {
	d := r.dev.gpu
	r.timing.StartFrame()
	sc := r.gen.swapchain
	idx, err := d.AcquireNextImage(sc.handle, r.sync.imageAcquired)
	if err != nil {
		return errors.Wrap(err, "acquire next image")
	}
	pass := &drawPass{
		pipe:        r.pipe,
		framebuffer: r.gen.framebuffers[idx],
		extent:      sc.extent,
		viewport:    r.viewport,
		clear:       gpu.ClearValues{Color: r.opts.ClearColor, Depth: 1},
		camera:      r.camera,
		meshes:      r.meshes,
	}
	err = RecordAndSubmit(d, Submission{
		Command:    r.sync.draw,
		Fence:      r.sync.drawFence,
		Queue:      r.dev.Queue(),
		Wait:       []gpu.Semaphore{r.sync.imageAcquired},
		WaitStages: []gpu.PipelineStage{gpu.StageBottomOfPipe},
		Signal:     []gpu.Semaphore{r.sync.renderDone},
	}, pass)
	if err != nil {
		return errors.Wrap(err, "draw")
	}
	err = d.QueuePresent(r.dev.Queue(), gpu.PresentInfo{
		Wait:       []gpu.Semaphore{r.sync.renderDone},
		Swapchain:  sc.handle,
		ImageIndex: idx,
	})
	if err != nil {
		return errors.Wrap(err, "present")
	}
	r.frames++
	r.timing.EndFrame()
	return nil
}

func (r *Renderer) fail(err error) {
	r.err = err
	r.state = Stopped
	r.log.Error("render loop stopped", "err", err, "frames", r.frames)
}

// Run steps the loop until it stops and returns the fatal error, if any.
func (r *Renderer) Run() error {
	for {
		switch r.Step() {
		case Stopped:
			return r.Err()
		case Idle:
			time.Sleep(r.opts.IdleInterval)
		}
	}
}

// Recreate asks the loop to rebuild the swapchain on its next step.
func (r *Renderer) Recreate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Running {
		r.state = Recreating
	}
}

// SetClearColor changes the clear color from the next frame on.
func (r *Renderer) SetClearColor(c [4]float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.ClearColor = c
}

// RegisterMesh uploads m and draws it in every later frame.
func (r *Renderer) RegisterMesh(m Mesh) (MeshHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return 0, errors.New("render: register mesh on destroyed renderer")
	}
	rm, err := uploadMesh(r.dev, m)
	if err != nil {
		return 0, err
	}
	r.meshes = append(r.meshes, rm)
	return MeshHandle(len(r.meshes) - 1), nil
}

// Mesh returns a copy of the registered mesh h.
func (r *Renderer) Mesh(h MeshHandle) (Mesh, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h < 0 || int(h) >= len(r.meshes) {
		return Mesh{}, false
	}
	return r.meshes[h].mesh, true
}

func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Frames returns the number of frames presented.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Recreations returns how many times the loop rebuilt the swapchain. The generation built
// by NewRenderer is not counted.
func (r *Renderer) Recreations() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recreations
}

// Viewport returns the viewport recorded into frames of the current generation.
func (r *Renderer) Viewport() gpu.Viewport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewport
}

// Swapchain returns the current swapchain, or nil while none exists.
func (r *Renderer) Swapchain() *Swapchain {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen == nil {
		return nil
	}
	return r.gen.swapchain
}

// Timing returns the last frame timing report.
func (r *Renderer) Timing() metrics.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timing.Last()
}

func (r *Renderer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Destroy waits for the device to go idle and destroys meshes, the swapchain generation,
// the pipeline set and the frame sync objects, in that order. The loop must not be running.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	if err := r.dev.gpu.WaitIdle(); err != nil {
		r.log.Warn("wait idle before destroy", "err", err)
	}
	r.releaseAll()
	r.state = Stopped
	r.destroyed = true
}

func (r *Renderer) releaseAll() {
	d := r.dev.gpu
	for i := len(r.meshes) - 1; i >= 0; i-- {
		r.meshes[i].destroy(d)
	}
	r.meshes = nil
	if r.gen != nil {
		r.gen.destroy(d)
		r.gen = nil
	}
	if r.pipe != nil {
		r.pipe.destroy(d)
		r.pipe = nil
	}
	if r.sync != nil {
		r.sync.destroy(d)
		r.sync = nil
	}
}
