// Package gputest provides an in-memory gpu.Instance and gpu.Device for tests.
//
// The mock device executes nothing. It keeps a log of every call, tracks which handles are
// alive, and models fence and command buffer state closely enough to report misuse: a
// handle used after it was destroyed, a double destroy, a call after the device itself was
// destroyed, or a command buffer reset while its last submission may still be executing.
// Misuse is collected as violations instead of panicking so a test can assert on it.
package gputest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/andewx/vkframe/gpu"
)

// Instance is a mock gpu.Instance with one physical device.
type Instance struct {
	mu sync.Mutex

	Families []gpu.QueueFamily
	// PresentFamilies lists the queue families that can present. Nil means all of them.
	PresentFamilies []uint32
	Caps            gpu.SurfaceCapabilities
	Formats         []gpu.SurfaceFormat
	Modes           []gpu.PresentMode
	NoDevices       bool
	// Extensions are the device extensions the physical device supports.
	Extensions []string

	devices    []*Device
	surfaces   map[gpu.Surface]bool
	nextSurf   gpu.Surface
	destroyed  bool
	violations []string
}

var _ gpu.Instance = (*Instance)(nil)

// NewInstance returns an instance whose surface reports a current extent of width x height.
func NewInstance(width, height uint32) *Instance {
	return &Instance{
		Families: []gpu.QueueFamily{{Flags: gpu.QueueGraphics | gpu.QueueCompute | gpu.QueueTransfer, Count: 1}},
		Caps: gpu.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           3,
			CurrentExtent:           gpu.Extent2D{Width: width, Height: height},
			MinImageExtent:          gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          gpu.Extent2D{Width: 4096, Height: 4096},
			SupportedTransforms:     gpu.SurfaceTransformIdentity,
			CurrentTransform:        gpu.SurfaceTransformIdentity,
			SupportedCompositeAlpha: gpu.CompositeAlphaOpaque,
		},
		Formats:  []gpu.SurfaceFormat{{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear}},
		Modes:      []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox},
		Extensions: []string{"VK_KHR_swapchain"},
		surfaces:   make(map[gpu.Surface]bool),
	}
}

// NewSurface hands out a surface handle, standing in for the window system.
func (in *Instance) NewSurface() gpu.Surface {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.nextSurf++
	in.surfaces[in.nextSurf] = true
	return in.nextSurf
}

// SetExtent changes the extent the surface reports, as a window resize would.
func (in *Instance) SetExtent(width, height uint32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.Caps.CurrentExtent = gpu.Extent2D{Width: width, Height: height}
}

// Device returns the most recently created device, or nil.
func (in *Instance) Device() *Device {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.devices) == 0 {
		return nil
	}
	return in.devices[len(in.devices)-1]
}

func (in *Instance) Destroyed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.destroyed
}

// Violations returns instance level misuse, such as destroying the instance while a
// device or surface is still alive.
func (in *Instance) Violations() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.violations...)
}

func (in *Instance) violate(format string, args ...any) {
	in.violations = append(in.violations, fmt.Sprintf(format, args...))
}

func (in *Instance) PhysicalDevices() ([]gpu.PhysicalDevice, error) {
	if in.NoDevices {
		return nil, nil
	}
	return []gpu.PhysicalDevice{1}, nil
}

func (in *Instance) DeviceInfo(pd gpu.PhysicalDevice) gpu.PhysicalDeviceInfo {
	return gpu.PhysicalDeviceInfo{Name: "gputest", Type: "virtual", APIVersion: 1 << 22}
}

func (in *Instance) QueueFamilies(pd gpu.PhysicalDevice) []gpu.QueueFamily {
	return in.Families
}

func (in *Instance) DeviceExtensions(pd gpu.PhysicalDevice) ([]string, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.Extensions...), nil
}

func (in *Instance) SurfaceSupport(pd gpu.PhysicalDevice, family uint32, s gpu.Surface) (bool, error) {
	if in.PresentFamilies == nil {
		return true, nil
	}
	for _, f := range in.PresentFamilies {
		if f == family {
			return true, nil
		}
	}
	return false, nil
}

func (in *Instance) SurfaceCapabilities(pd gpu.PhysicalDevice, s gpu.Surface) (gpu.SurfaceCapabilities, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.surfaces[s] {
		in.violate("capabilities of unknown surface %d", s)
		return gpu.SurfaceCapabilities{}, errors.Errorf("gputest: unknown surface %d", s)
	}
	return in.Caps, nil
}

func (in *Instance) SurfaceFormats(pd gpu.PhysicalDevice, s gpu.Surface) ([]gpu.SurfaceFormat, error) {
	return in.Formats, nil
}

func (in *Instance) PresentModes(pd gpu.PhysicalDevice, s gpu.Surface) ([]gpu.PresentMode, error) {
	return in.Modes, nil
}

func (in *Instance) CreateDevice(pd gpu.PhysicalDevice, family uint32, extensions []string) (gpu.Device, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(family) >= len(in.Families) {
		return nil, errors.Errorf("gputest: no queue family %d", family)
	}
	for _, e := range extensions {
		if !slices.Contains(in.Extensions, e) {
			return nil, errors.Wrapf(gpu.ErrExtensionNotPresent, "gputest: device extension %s", e)
		}
	}
	d := newDevice(in, family, extensions)
	in.devices = append(in.devices, d)
	return d, nil
}

func (in *Instance) DestroySurface(s gpu.Surface) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.surfaces[s] {
		in.violate("destroy of unknown surface %d", s)
		return
	}
	delete(in.surfaces, s)
}

func (in *Instance) Destroy() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, d := range in.devices {
		if !d.Destroyed() {
			in.violate("instance destroyed before device")
		}
	}
	if len(in.surfaces) > 0 {
		in.violate("instance destroyed with %d surfaces alive", len(in.surfaces))
	}
	in.destroyed = true
}
