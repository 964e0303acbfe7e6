package vkgpu

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkframe/gpu"
)

// queueHandle is the id of the single queue every Device exposes.
const queueHandle gpu.Queue = 1

// Device is a Vulkan logical device. It implements gpu.Device.
type Device struct {
	inst   *Instance
	pd     vk.PhysicalDevice
	device vk.Device
	family uint32
	queue  vk.Queue
	memory []gpu.MemoryType
	objs   *handles
}

var _ gpu.Device = (*Device)(nil)

// swapchain keeps the images a swapchain owns so their ids die with it.
type swapchain struct {
	handle vk.Swapchain
	images []gpu.Image
}

type commandPool struct {
	handle  vk.CommandPool
	buffers []uint64
}

type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []uint64
}

func newDevice(inst *Instance, pd vk.PhysicalDevice, device vk.Device, family uint32) *Device {
	d := &Device{inst: inst, pd: pd, device: device, family: family, objs: newHandles()}
	vk.GetDeviceQueue(device, family, 0, &d.queue)

	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &props)
	props.Deref()
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		t := props.MemoryTypes[i]
		t.Deref()
		d.memory = append(d.memory, gpu.MemoryType{
			Properties: gpu.MemoryProperty(t.PropertyFlags),
			HeapIndex:  t.HeapIndex,
		})
	}
	return d
}

// Handle returns the native device.
func (d *Device) Handle() vk.Device { return d.device }

func (d *Device) Queue() gpu.Queue { return queueHandle }

func (d *Device) MemoryTypes() []gpu.MemoryType {
	return append([]gpu.MemoryType(nil), d.memory...)
}

func (d *Device) WaitIdle() error {
	return check(vk.DeviceWaitIdle(d.device), "vkDeviceWaitIdle")
}

// Destroy destroys the device. Objects that are still alive are reported and leaked.
func (d *Device) Destroy() {
	if d.device == nil {
		return
	}
	if n := d.objs.len(); n > 0 {
		d.inst.log.Warn("vulkan: destroying device with live objects", "objects", n)
	}
	vk.DestroyDevice(d.device, nil)
	d.device = nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	var sc vk.Swapchain
	ret := vk.CreateSwapchain(d.device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.inst.surface(info.Surface),
		MinImageCount:    info.MinImageCount,
		ImageFormat:      vk.Format(info.Format.Format),
		ImageColorSpace:  vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformFlagBits(info.PreTransform),
		CompositeAlpha:   vk.CompositeAlphaFlagBits(info.CompositeAlpha),
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		PresentMode:      vk.PresentMode(info.PresentMode),
		OldSwapchain:     vk.NullSwapchain,
		Clipped:          vk.True,
	}, nil, &sc)
	if err := check(ret, "vkCreateSwapchainKHR"); err != nil {
		return 0, err
	}
	return gpu.Swapchain(d.objs.add(&swapchain{handle: sc})), nil
}

func (d *Device) DestroySwapchain(h gpu.Swapchain) {
	sc := take[*swapchain](d.objs, uint64(h))
	if sc == nil {
		return
	}
	for _, img := range sc.images {
		d.objs.remove(uint64(img))
	}
	vk.DestroySwapchain(d.device, sc.handle, nil)
}

func (d *Device) SwapchainImages(h gpu.Swapchain) ([]gpu.Image, error) {
	sc := lookup[*swapchain](d.objs, uint64(h))
	if sc == nil {
		return nil, errors.Errorf("vulkan: unknown swapchain %d", h)
	}
	if sc.images != nil {
		return append([]gpu.Image(nil), sc.images...), nil
	}
	var count uint32
	ret := vk.GetSwapchainImages(d.device, sc.handle, &count, nil)
	if err := check(ret, "vkGetSwapchainImagesKHR"); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(d.device, sc.handle, &count, images)
	if err := check(ret, "vkGetSwapchainImagesKHR"); err != nil {
		return nil, err
	}
	for _, img := range images[:count] {
		sc.images = append(sc.images, gpu.Image(d.objs.add(img)))
	}
	return append([]gpu.Image(nil), sc.images...), nil
}

func (d *Device) AcquireNextImage(h gpu.Swapchain, signal gpu.Semaphore) (uint32, error) {
	sc := lookup[*swapchain](d.objs, uint64(h))
	if sc == nil {
		return 0, errors.Errorf("vulkan: unknown swapchain %d", h)
	}
	var idx uint32
	ret := vk.AcquireNextImage(d.device, sc.handle, vk.MaxUint64,
		lookup[vk.Semaphore](d.objs, uint64(signal)), vk.NullFence, &idx)
	if err := check(ret, "vkAcquireNextImageKHR"); err != nil {
		return 0, err
	}
	return idx, nil
}

func (d *Device) QueuePresent(q gpu.Queue, info gpu.PresentInfo) error {
	sc := lookup[*swapchain](d.objs, uint64(info.Swapchain))
	if sc == nil {
		return errors.Errorf("vulkan: unknown swapchain %d", info.Swapchain)
	}
	wait := d.semaphores(info.Wait)
	ret := vk.QueuePresent(d.queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(wait)),
		PWaitSemaphores:    wait,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{info.ImageIndex},
	})
	return check(ret, "vkQueuePresentKHR")
}

func (d *Device) semaphores(ids []gpu.Semaphore) []vk.Semaphore {
	if len(ids) == 0 {
		return nil
	}
	out := make([]vk.Semaphore, len(ids))
	for i, id := range ids {
		out[i] = lookup[vk.Semaphore](d.objs, uint64(id))
	}
	return out
}

func (d *Device) CreateImage(info gpu.ImageInfo) (gpu.Image, error) {
	var img vk.Image
	ret := vk.CreateImage(d.device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        vk.Format(info.Format),
		Extent:        vk.Extent3D{Width: info.Extent.Width, Height: info.Extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if err := check(ret, "vkCreateImage"); err != nil {
		return 0, err
	}
	return gpu.Image(d.objs.add(img)), nil
}

func (d *Device) DestroyImage(h gpu.Image) {
	if img := take[vk.Image](d.objs, uint64(h)); img != vk.NullImage {
		vk.DestroyImage(d.device, img, nil)
	}
}

func (d *Device) ImageMemoryRequirements(h gpu.Image) gpu.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, lookup[vk.Image](d.objs, uint64(h)), &req)
	req.Deref()
	return requirements(req)
}

func requirements(req vk.MemoryRequirements) gpu.MemoryRequirements {
	return gpu.MemoryRequirements{
		Size:           uint64(req.Size),
		Alignment:      uint64(req.Alignment),
		MemoryTypeBits: req.MemoryTypeBits,
	}
}

func (d *Device) CreateImageView(info gpu.ImageViewInfo) (gpu.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(d.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    lookup[vk.Image](d.objs, uint64(info.Image)),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(info.Aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := check(ret, "vkCreateImageView"); err != nil {
		return 0, err
	}
	return gpu.ImageView(d.objs.add(view)), nil
}

func (d *Device) DestroyImageView(h gpu.ImageView) {
	if v := take[vk.ImageView](d.objs, uint64(h)); v != vk.NullImageView {
		vk.DestroyImageView(d.device, v, nil)
	}
}

func (d *Device) CreateSampler() (gpu.Sampler, error) {
	var s vk.Sampler
	ret := vk.CreateSampler(d.device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}, nil, &s)
	if err := check(ret, "vkCreateSampler"); err != nil {
		return 0, err
	}
	return gpu.Sampler(d.objs.add(s)), nil
}

func (d *Device) DestroySampler(h gpu.Sampler) {
	if s := take[vk.Sampler](d.objs, uint64(h)); s != vk.NullSampler {
		vk.DestroySampler(d.device, s, nil)
	}
}

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	var buf vk.Buffer
	ret := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if err := check(ret, "vkCreateBuffer"); err != nil {
		return 0, err
	}
	return gpu.Buffer(d.objs.add(buf)), nil
}

func (d *Device) DestroyBuffer(h gpu.Buffer) {
	if b := take[vk.Buffer](d.objs, uint64(h)); b != vk.NullBuffer {
		vk.DestroyBuffer(d.device, b, nil)
	}
}

func (d *Device) BufferMemoryRequirements(h gpu.Buffer) gpu.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, lookup[vk.Buffer](d.objs, uint64(h)), &req)
	req.Deref()
	return requirements(req)
}

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (gpu.Memory, error) {
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if err := check(ret, "vkAllocateMemory"); err != nil {
		return 0, err
	}
	return gpu.Memory(d.objs.add(mem)), nil
}

func (d *Device) FreeMemory(h gpu.Memory) {
	if m := take[vk.DeviceMemory](d.objs, uint64(h)); m != vk.NullDeviceMemory {
		vk.FreeMemory(d.device, m, nil)
	}
}

func (d *Device) BindImageMemory(img gpu.Image, m gpu.Memory) error {
	ret := vk.BindImageMemory(d.device, lookup[vk.Image](d.objs, uint64(img)), lookup[vk.DeviceMemory](d.objs, uint64(m)), 0)
	return check(ret, "vkBindImageMemory")
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.Memory) error {
	ret := vk.BindBufferMemory(d.device, lookup[vk.Buffer](d.objs, uint64(b)), lookup[vk.DeviceMemory](d.objs, uint64(m)), 0)
	return check(ret, "vkBindBufferMemory")
}

func (d *Device) WriteMemory(m gpu.Memory, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	mem := lookup[vk.DeviceMemory](d.objs, uint64(m))
	var ptr unsafe.Pointer
	ret := vk.MapMemory(d.device, mem, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr)
	if err := check(ret, "vkMapMemory"); err != nil {
		return err
	}
	n := vk.Memcopy(ptr, data)
	vk.UnmapMemory(d.device, mem)
	if n != len(data) {
		return errors.Errorf("vulkan: copied %d of %d bytes", n, len(data))
	}
	return nil
}

func (d *Device) CreateFramebuffer(rp gpu.RenderPass, attachments []gpu.ImageView, e gpu.Extent2D) (gpu.Framebuffer, error) {
	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		views[i] = lookup[vk.ImageView](d.objs, uint64(a))
	}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(d.device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      lookup[vk.RenderPass](d.objs, uint64(rp)),
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           e.Width,
		Height:          e.Height,
		Layers:          1,
	}, nil, &fb)
	if err := check(ret, "vkCreateFramebuffer"); err != nil {
		return 0, err
	}
	return gpu.Framebuffer(d.objs.add(fb)), nil
}

func (d *Device) DestroyFramebuffer(h gpu.Framebuffer) {
	if fb := take[vk.Framebuffer](d.objs, uint64(h)); fb != vk.NullFramebuffer {
		vk.DestroyFramebuffer(d.device, fb, nil)
	}
}

func (d *Device) CreateCommandPool(family uint32) (gpu.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(d.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if err := check(ret, "vkCreateCommandPool"); err != nil {
		return 0, err
	}
	return gpu.CommandPool(d.objs.add(&commandPool{handle: pool})), nil
}

// DestroyCommandPool destroys the pool and frees its command buffers.
func (d *Device) DestroyCommandPool(h gpu.CommandPool) {
	p := take[*commandPool](d.objs, uint64(h))
	if p == nil {
		return
	}
	for _, cb := range p.buffers {
		d.objs.remove(cb)
	}
	vk.DestroyCommandPool(d.device, p.handle, nil)
}

func (d *Device) AllocateCommandBuffers(h gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	p := lookup[*commandPool](d.objs, uint64(h))
	if p == nil {
		return nil, errors.Errorf("vulkan: unknown command pool %d", h)
	}
	cbs := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(d.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, cbs)
	if err := check(ret, "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]gpu.CommandBuffer, count)
	for i, cb := range cbs {
		id := d.objs.add(cb)
		p.buffers = append(p.buffers, id)
		out[i] = gpu.CommandBuffer(id)
	}
	return out, nil
}

func (d *Device) cmd(h gpu.CommandBuffer) vk.CommandBuffer {
	return lookup[vk.CommandBuffer](d.objs, uint64(h))
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	return check(vk.ResetCommandBuffer(d.cmd(cb), 0), "vkResetCommandBuffer")
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer) error {
	ret := vk.BeginCommandBuffer(d.cmd(cb), &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	return check(ret, "vkBeginCommandBuffer")
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	return check(vk.EndCommandBuffer(d.cmd(cb)), "vkEndCommandBuffer")
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	ret := vk.CreateFence(d.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &f)
	if err := check(ret, "vkCreateFence"); err != nil {
		return 0, err
	}
	return gpu.Fence(d.objs.add(f)), nil
}

func (d *Device) DestroyFence(h gpu.Fence) {
	if f := take[vk.Fence](d.objs, uint64(h)); f != vk.NullFence {
		vk.DestroyFence(d.device, f, nil)
	}
}

func (d *Device) WaitForFence(h gpu.Fence) error {
	f := lookup[vk.Fence](d.objs, uint64(h))
	ret := vk.WaitForFences(d.device, 1, []vk.Fence{f}, vk.True, vk.MaxUint64)
	return check(ret, "vkWaitForFences")
}

func (d *Device) ResetFence(h gpu.Fence) error {
	f := lookup[vk.Fence](d.objs, uint64(h))
	return check(vk.ResetFences(d.device, 1, []vk.Fence{f}), "vkResetFences")
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	var s vk.Semaphore
	ret := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &s)
	if err := check(ret, "vkCreateSemaphore"); err != nil {
		return 0, err
	}
	return gpu.Semaphore(d.objs.add(s)), nil
}

func (d *Device) DestroySemaphore(h gpu.Semaphore) {
	if s := take[vk.Semaphore](d.objs, uint64(h)); s != vk.NullSemaphore {
		vk.DestroySemaphore(d.device, s, nil)
	}
}

func (d *Device) QueueSubmit(q gpu.Queue, info gpu.SubmitInfo, signal gpu.Fence) error {
	cbs := make([]vk.CommandBuffer, len(info.Commands))
	for i, cb := range info.Commands {
		cbs[i] = d.cmd(cb)
	}
	wait := d.semaphores(info.Wait)
	var stages []vk.PipelineStageFlags
	for _, s := range info.WaitStages {
		stages = append(stages, vk.PipelineStageFlags(s))
	}
	sig := d.semaphores(info.Signal)
	ret := vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(cbs)),
		PCommandBuffers:      cbs,
		SignalSemaphoreCount: uint32(len(sig)),
		PSignalSemaphores:    sig,
	}}, lookup[vk.Fence](d.objs, uint64(signal)))
	return check(ret, "vkQueueSubmit")
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Errorf("vulkan: shader code of %d bytes", len(code))
	}
	var m vk.ShaderModule
	ret := vk.CreateShaderModule(d.device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &m)
	if err := check(ret, "vkCreateShaderModule"); err != nil {
		return 0, err
	}
	return gpu.ShaderModule(d.objs.add(m)), nil
}

func (d *Device) DestroyShaderModule(h gpu.ShaderModule) {
	if m := take[vk.ShaderModule](d.objs, uint64(h)); m != vk.NullShaderModule {
		vk.DestroyShaderModule(d.device, m, nil)
	}
}
