// Package wsi connects GLFW windows to the renderer: it creates Vulkan surfaces for them and
// feeds their resize, minimize and close events into render.EventStates.
//
// GLFW must only be used from the main thread. Call Init and every Window method there.
package wsi

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkframe/gpu"
	"github.com/andewx/vkframe/gpu/vkgpu"
	"github.com/andewx/vkframe/render"
)

// Init initializes GLFW and points the Vulkan loader at GLFW's instance proc address.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "glfw init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw: vulkan loader not found")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "vulkan init")
	}
	return nil
}

func Terminate() {
	glfw.Terminate()
}

// WaitEvents processes pending window events, waiting at most timeout seconds for one.
func WaitEvents(timeout float64) {
	glfw.WaitEventsTimeout(timeout)
}

// Window is a GLFW window without a client API, ready for a Vulkan surface.
type Window struct {
	win *glfw.Window
}

type WindowOptions struct {
	Title         string
	Width, Height int
	Resizable     bool
}

func NewWindow(opts WindowOptions) (*Window, error) {
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.True)
	if opts.Resizable {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Resizable, glfw.False)
	}
	win, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	return &Window{win: win}, nil
}

// RequiredExtensions returns the instance extensions surfaces of this window need.
func (w *Window) RequiredExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

// CreateSurface creates a Vulkan surface for the window and hands it to inst.
func (w *Window) CreateSurface(inst *vkgpu.Instance) (gpu.Surface, error) {
	ptr, err := w.win.CreateWindowSurface(inst.Handle(), nil)
	if err != nil {
		return 0, errors.Wrap(err, "create window surface")
	}
	return inst.AddSurface(vk.SurfaceFromPointer(ptr)), nil
}

// FramebufferSize returns the drawable size in pixels.
func (w *Window) FramebufferSize() (width, height uint32) {
	fw, fh := w.win.GetFramebufferSize()
	return clampSize(fw), clampSize(fh)
}

func clampSize(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// Bind routes resize, minimize and close events of the window into events.
func (w *Window) Bind(events *render.EventStates) {
	w.win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		events.Resize(clampSize(width), clampSize(height))
	})
	w.win.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		if iconified {
			events.Resize(0, 0)
			return
		}
		events.Resize(w.FramebufferSize())
	})
	w.win.SetCloseCallback(func(_ *glfw.Window) {
		events.RequestExit()
	})
}

func (w *Window) ShouldClose() bool {
	return w.win.ShouldClose()
}

func (w *Window) SetTitle(title string) {
	w.win.SetTitle(title)
}

func (w *Window) Destroy() {
	w.win.Destroy()
}
