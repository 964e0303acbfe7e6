package render

import (
	"github.com/pkg/errors"

	"github.com/andewx/vkframe/gpu"
)

// Swapchain is one generation of presentable images. It is never modified; recreation
// destroys it and creates a new one.
type Swapchain struct {
	handle     gpu.Swapchain
	queue      gpu.Queue
	mode       gpu.PresentMode
	imageCount uint32
	extent     gpu.Extent2D
	format     gpu.SurfaceFormat
}

// ChoosePresentMode prefers mailbox and falls back to FIFO, which every device supports.
func ChoosePresentMode(modes []gpu.PresentMode) gpu.PresentMode {
	for _, m := range modes {
		if m == gpu.PresentModeMailbox {
			return m
		}
	}
	return gpu.PresentModeFifo
}

// ChooseImageCount asks for one image more than the minimum, clamped to the maximum when
// the surface has one.
func ChooseImageCount(caps gpu.SurfaceCapabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// ChooseExtent returns the surface's current extent, or width x height when the surface
// leaves the extent to the swapchain.
func ChooseExtent(caps gpu.SurfaceCapabilities, width, height uint32) gpu.Extent2D {
	if caps.CurrentExtent.Undefined() {
		return gpu.Extent2D{Width: width, Height: height}
	}
	return caps.CurrentExtent
}

func choosePreTransform(caps gpu.SurfaceCapabilities) gpu.SurfaceTransform {
	if caps.SupportedTransforms&gpu.SurfaceTransformIdentity != 0 {
		return gpu.SurfaceTransformIdentity
	}
	return caps.CurrentTransform
}

func chooseCompositeAlpha(caps gpu.SurfaceCapabilities) gpu.CompositeAlpha {
	for _, a := range []gpu.CompositeAlpha{
		gpu.CompositeAlphaOpaque,
		gpu.CompositeAlphaPreMultiplied,
		gpu.CompositeAlphaPostMultiplied,
		gpu.CompositeAlphaInherit,
	} {
		if caps.SupportedCompositeAlpha&a != 0 {
			return a
		}
	}
	return gpu.CompositeAlphaOpaque
}

// CreateSwapchain builds a swapchain for surface using its last refreshed capabilities.
// A resolved extent with a zero dimension returns ErrZeroExtent without touching the
// device.
func CreateSwapchain(dev *Device, surface *Surface, width, height uint32) (*Swapchain, error) {
	caps := surface.Capabilities()
	sc := &Swapchain{
		queue:      dev.Queue(),
		mode:       ChoosePresentMode(surface.PresentModes()),
		imageCount: ChooseImageCount(caps),
		extent:     ChooseExtent(caps, width, height),
		format:     surface.Format(),
	}
	if sc.extent.IsZero() {
		return nil, errors.Wrapf(ErrZeroExtent, "%dx%d", sc.extent.Width, sc.extent.Height)
	}
	h, err := dev.gpu.CreateSwapchain(gpu.SwapchainInfo{
		Surface:        surface.Handle(),
		MinImageCount:  sc.imageCount,
		Format:         sc.format,
		Extent:         sc.extent,
		PreTransform:   choosePreTransform(caps),
		CompositeAlpha: chooseCompositeAlpha(caps),
		PresentMode:    sc.mode,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}
	sc.handle = h
	return sc, nil
}

func (sc *Swapchain) Handle() gpu.Swapchain { return sc.handle }
func (sc *Swapchain) PresentMode() gpu.PresentMode { return sc.mode }
func (sc *Swapchain) ImageCount() uint32 { return sc.imageCount }
func (sc *Swapchain) Extent() gpu.Extent2D { return sc.extent }

func (sc *Swapchain) destroy(dev gpu.Device) {
	dev.DestroySwapchain(sc.handle)
	sc.handle = 0
}

// DepthFormat is the format of every depth buffer.
const DepthFormat = gpu.FormatD16Unorm

// generation holds the objects whose lifetime is one swapchain: the swapchain itself,
// views of its images, the depth buffer and one framebuffer per image.
type generation struct {
	swapchain    *Swapchain
	images       []gpu.Image
	views        []gpu.ImageView
	depth        deviceImage
	framebuffers []gpu.Framebuffer
}

func newGeneration(dev *Device, surface *Surface, rp gpu.RenderPass, size gpu.Extent2D) (*generation, error) {
	sc, err := CreateSwapchain(dev, surface, size.Width, size.Height)
	if err != nil {
		return nil, err
	}
	g := &generation{swapchain: sc}
	if err := g.build(dev, rp); err != nil {
		g.destroy(dev.gpu)
		return nil, err
	}
	return g, nil
}

func (g *generation) build(dev *Device, rp gpu.RenderPass) error {
	d := dev.gpu
	images, err := d.SwapchainImages(g.swapchain.handle)
	if err != nil {
		return errors.Wrap(err, "swapchain images")
	}
	g.images = images
	for _, img := range images {
		v, err := d.CreateImageView(gpu.ImageViewInfo{
			Image:  img,
			Format: g.swapchain.format.Format,
			Aspect: gpu.AspectColor,
		})
		if err != nil {
			return errors.Wrap(err, "create present image view")
		}
		g.views = append(g.views, v)
	}
	g.depth, err = dev.createImage(DepthFormat, g.swapchain.extent, gpu.ImageUsageDepthStencilAttachment, gpu.AspectDepth)
	if err != nil {
		return errors.Wrap(err, "depth buffer")
	}
	for _, v := range g.views {
		fb, err := d.CreateFramebuffer(rp, []gpu.ImageView{v, g.depth.view}, g.swapchain.extent)
		if err != nil {
			return errors.Wrap(err, "create framebuffer")
		}
		g.framebuffers = append(g.framebuffers, fb)
	}
	return nil
}

// destroy releases framebuffers, present views, the swapchain and the depth buffer, in
// that order. The device must be idle.
func (g *generation) destroy(dev gpu.Device) {
	for _, fb := range g.framebuffers {
		dev.DestroyFramebuffer(fb)
	}
	for _, v := range g.views {
		dev.DestroyImageView(v)
	}
	if g.swapchain != nil {
		g.swapchain.destroy(dev)
	}
	g.depth.destroy(dev)
	g.framebuffers, g.views, g.images = nil, nil, nil
}
