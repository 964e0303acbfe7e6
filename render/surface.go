package render

import (
	"github.com/pkg/errors"

	"github.com/andewx/vkframe/gpu"
)

// Surface describes a native window surface as seen by one physical device.
// Capabilities are a snapshot refreshed on every swapchain recreation.
type Surface struct {
	inst     gpu.Instance
	handle   gpu.Surface
	physical gpu.PhysicalDevice
	family   uint32

	format gpu.SurfaceFormat
	modes  []gpu.PresentMode
	caps   gpu.SurfaceCapabilities
}

// NewSurface takes ownership of handle and queries its format, present modes and
// capabilities on physical device pd.
func NewSurface(inst gpu.Instance, handle gpu.Surface, pd gpu.PhysicalDevice, family uint32) (*Surface, error) {
	s := &Surface{inst: inst, handle: handle, physical: pd, family: family}
	formats, err := inst.SurfaceFormats(pd, handle)
	if err != nil {
		return nil, errors.Wrap(err, "surface formats")
	}
	if len(formats) == 0 {
		return nil, errors.New("surface reports no formats")
	}
	s.format = formats[0]
	if s.format.Format == gpu.FormatUndefined {
		s.format.Format = gpu.FormatB8G8R8A8Unorm
	}
	if s.modes, err = inst.PresentModes(pd, handle); err != nil {
		return nil, errors.Wrap(err, "surface present modes")
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh re-queries the surface capabilities.
func (s *Surface) Refresh() error {
	caps, err := s.inst.SurfaceCapabilities(s.physical, s.handle)
	if err != nil {
		return errors.Wrap(err, "surface capabilities")
	}
	s.caps = caps
	return nil
}

func (s *Surface) Handle() gpu.Surface { return s.handle }
func (s *Surface) Format() gpu.SurfaceFormat { return s.format }
func (s *Surface) PresentModes() []gpu.PresentMode { return s.modes }
func (s *Surface) Capabilities() gpu.SurfaceCapabilities { return s.caps }
func (s *Surface) QueueFamily() uint32 { return s.family }

// Resolution returns the surface's current extent from the last refresh.
func (s *Surface) Resolution() gpu.Extent2D {
	return s.caps.CurrentExtent
}

// Destroy destroys the native surface. The swapchain built on it must be gone.
func (s *Surface) Destroy() {
	s.inst.DestroySurface(s.handle)
	s.handle = 0
}
