package render

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/andewx/vkframe/gpu"
)

// SwapchainExtension is always enabled on devices created by CreateDevice.
const SwapchainExtension = "VK_KHR_swapchain"

// Device is a logical device with the one queue every window uses for graphics and
// presentation. It owns every object allocated below it.
type Device struct {
	gpu      gpu.Device
	physical gpu.PhysicalDevice
	family   uint32
	queue    gpu.Queue
	memory   []gpu.MemoryType
}

// SelectPhysicalDevice returns the first physical device that supports the swapchain
// extension and has a queue family with graphics commands and presentation to surface.
func SelectPhysicalDevice(inst gpu.Instance, surface gpu.Surface) (gpu.PhysicalDevice, uint32, error) {
	pds, err := inst.PhysicalDevices()
	if err != nil {
		return 0, 0, errors.Wrap(err, "enumerate physical devices")
	}
	for _, pd := range pds {
		exts, err := inst.DeviceExtensions(pd)
		if err != nil {
			return 0, 0, errors.Wrap(err, "device extensions")
		}
		if !slices.Contains(exts, SwapchainExtension) {
			continue
		}
		for i, fam := range inst.QueueFamilies(pd) {
			if fam.Flags&gpu.QueueGraphics == 0 {
				continue
			}
			ok, err := inst.SurfaceSupport(pd, uint32(i), surface)
			if err != nil {
				return 0, 0, errors.Wrapf(err, "surface support of family %d", i)
			}
			if ok {
				return pd, uint32(i), nil
			}
		}
	}
	return 0, 0, ErrNoSuitableDevice
}

// CreateDevice creates the logical device for physical device pd with one queue from
// family. The swapchain extension is added to extensions when missing. A device lacking
// any of them is not suitable.
func CreateDevice(inst gpu.Instance, pd gpu.PhysicalDevice, family uint32, extensions []string) (*Device, error) {
	fams := inst.QueueFamilies(pd)
	if int(family) >= len(fams) || fams[family].Flags&gpu.QueueGraphics == 0 {
		return nil, errors.Wrapf(ErrNoSuitableDevice, "queue family %d", family)
	}
	exts := []string{SwapchainExtension}
	for _, e := range extensions {
		if e != SwapchainExtension {
			exts = append(exts, e)
		}
	}
	d, err := inst.CreateDevice(pd, family, exts)
	if errors.Is(err, gpu.ErrExtensionNotPresent) {
		return nil, errors.Wrapf(ErrNoSuitableDevice, "create device: %v", err)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create device")
	}
	return &Device{
		gpu:      d,
		physical: pd,
		family:   family,
		queue:    d.Queue(),
		memory:   d.MemoryTypes(),
	}, nil
}

func (d *Device) GPU() gpu.Device { return d.gpu }
func (d *Device) PhysicalDevice() gpu.PhysicalDevice { return d.physical }
func (d *Device) QueueFamily() uint32 { return d.family }
func (d *Device) Queue() gpu.Queue { return d.queue }

// Destroy destroys the logical device. Everything allocated from it must be gone.
func (d *Device) Destroy() {
	d.gpu.Destroy()
}

// FindMemoryType returns the index of the first memory type allowed by typeBits that has
// every property in want.
func FindMemoryType(types []gpu.MemoryType, typeBits uint32, want gpu.MemoryProperty) (uint32, bool) {
	for i, t := range types {
		if typeBits&(1<<uint(i)) != 0 && t.Properties&want == want {
			return uint32(i), true
		}
	}
	return 0, false
}

func (d *Device) allocate(req gpu.MemoryRequirements, want gpu.MemoryProperty) (gpu.Memory, error) {
	idx, ok := FindMemoryType(d.memory, req.MemoryTypeBits, want)
	if !ok {
		return 0, errors.Wrapf(ErrNoMemoryType, "type bits %#x properties %#x", req.MemoryTypeBits, want)
	}
	return d.gpu.AllocateMemory(req.Size, idx)
}

// hostBuffer is a buffer backed by host visible, coherent memory.
type hostBuffer struct {
	buffer gpu.Buffer
	memory gpu.Memory
	size   uint64
}

// createHostBuffer creates a buffer of len(data) bytes and fills it with data.
func (d *Device) createHostBuffer(data []byte, usage gpu.BufferUsage) (hostBuffer, error) {
	var b hostBuffer
	buf, err := d.gpu.CreateBuffer(uint64(len(data)), usage)
	if err != nil {
		return b, errors.Wrap(err, "create buffer")
	}
	b.buffer = buf
	b.size = uint64(len(data))
	mem, err := d.allocate(d.gpu.BufferMemoryRequirements(buf), gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
	if err != nil {
		d.gpu.DestroyBuffer(buf)
		return hostBuffer{}, errors.Wrap(err, "allocate buffer memory")
	}
	b.memory = mem
	if err := d.gpu.BindBufferMemory(buf, mem); err != nil {
		b.destroy(d.gpu)
		return hostBuffer{}, errors.Wrap(err, "bind buffer memory")
	}
	if err := d.gpu.WriteMemory(mem, 0, data); err != nil {
		b.destroy(d.gpu)
		return hostBuffer{}, errors.Wrap(err, "write buffer memory")
	}
	return b, nil
}

func (b *hostBuffer) write(dev gpu.Device, data []byte) error {
	if uint64(len(data)) > b.size {
		return errors.Errorf("write of %d bytes into %d byte buffer", len(data), b.size)
	}
	return dev.WriteMemory(b.memory, 0, data)
}

func (b *hostBuffer) destroy(dev gpu.Device) {
	dev.DestroyBuffer(b.buffer)
	dev.FreeMemory(b.memory)
	*b = hostBuffer{}
}

// deviceImage is an image with its own device local memory and a view.
type deviceImage struct {
	image  gpu.Image
	memory gpu.Memory
	view   gpu.ImageView
}

func (d *Device) createImage(format gpu.Format, extent gpu.Extent2D, usage gpu.ImageUsage, aspect gpu.Aspect) (deviceImage, error) {
	var img deviceImage
	h, err := d.gpu.CreateImage(gpu.ImageInfo{Format: format, Extent: extent, Usage: usage})
	if err != nil {
		return img, errors.Wrap(err, "create image")
	}
	img.image = h
	mem, err := d.allocate(d.gpu.ImageMemoryRequirements(h), gpu.MemoryDeviceLocal)
	if err != nil {
		img.destroy(d.gpu)
		return deviceImage{}, errors.Wrap(err, "allocate image memory")
	}
	img.memory = mem
	if err := d.gpu.BindImageMemory(h, mem); err != nil {
		img.destroy(d.gpu)
		return deviceImage{}, errors.Wrap(err, "bind image memory")
	}
	view, err := d.gpu.CreateImageView(gpu.ImageViewInfo{Image: h, Format: format, Aspect: aspect})
	if err != nil {
		img.destroy(d.gpu)
		return deviceImage{}, errors.Wrap(err, "create image view")
	}
	img.view = view
	return img, nil
}

// destroy releases memory, view and image in that order. Null members are skipped by the
// device.
func (img *deviceImage) destroy(dev gpu.Device) {
	dev.FreeMemory(img.memory)
	dev.DestroyImageView(img.view)
	dev.DestroyImage(img.image)
	*img = deviceImage{}
}
