package gpu

import "github.com/pkg/errors"

var (
	// ErrOutOfDate is returned by AcquireNextImage and QueuePresent when the surface
	// changed and the swapchain must be recreated before presenting again.
	ErrOutOfDate = errors.New("gpu: swapchain out of date")

	// ErrDeviceLost means the device can no longer be used.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrExtensionNotPresent means a required instance or device extension is not
	// supported.
	ErrExtensionNotPresent = errors.New("gpu: extension not present")
)

// Instance is the process-wide connection to the graphics API.
type Instance interface {
	PhysicalDevices() ([]PhysicalDevice, error)
	DeviceInfo(pd PhysicalDevice) PhysicalDeviceInfo
	QueueFamilies(pd PhysicalDevice) []QueueFamily
	// DeviceExtensions lists the extensions pd supports.
	DeviceExtensions(pd PhysicalDevice) ([]string, error)
	SurfaceSupport(pd PhysicalDevice, family uint32, s Surface) (bool, error)
	SurfaceCapabilities(pd PhysicalDevice, s Surface) (SurfaceCapabilities, error)
	SurfaceFormats(pd PhysicalDevice, s Surface) ([]SurfaceFormat, error)
	PresentModes(pd PhysicalDevice, s Surface) ([]PresentMode, error)

	// CreateDevice creates a logical device with one queue from family. Every extension
	// must be supported, otherwise the error wraps ErrExtensionNotPresent.
	CreateDevice(pd PhysicalDevice, family uint32, extensions []string) (Device, error)

	DestroySurface(s Surface)
	Destroy()
}

// Device is a logical device and everything allocated against it. Objects created by a
// Device must be destroyed before the Device itself.
type Device interface {
	Queue() Queue
	MemoryTypes() []MemoryType
	WaitIdle() error
	Destroy()

	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
	SwapchainImages(sc Swapchain) ([]Image, error)
	// AcquireNextImage blocks until an image is available and returns its index. The
	// semaphore is signaled when the image is ready to be rendered to.
	AcquireNextImage(sc Swapchain, signal Semaphore) (uint32, error)
	QueuePresent(q Queue, info PresentInfo) error

	CreateImage(info ImageInfo) (Image, error)
	DestroyImage(img Image)
	ImageMemoryRequirements(img Image) MemoryRequirements
	CreateImageView(info ImageViewInfo) (ImageView, error)
	DestroyImageView(v ImageView)
	CreateSampler() (Sampler, error)
	DestroySampler(s Sampler)

	CreateBuffer(size uint64, usage BufferUsage) (Buffer, error)
	DestroyBuffer(b Buffer)
	BufferMemoryRequirements(b Buffer) MemoryRequirements

	AllocateMemory(size uint64, typeIndex uint32) (Memory, error)
	FreeMemory(m Memory)
	BindImageMemory(img Image, m Memory) error
	BindBufferMemory(b Buffer, m Memory) error
	// WriteMemory maps host visible memory, copies data at offset and unmaps it.
	WriteMemory(m Memory, offset uint64, data []byte) error

	CreateRenderPass(color, depth Format) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(rp RenderPass, attachments []ImageView, extent Extent2D) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateCommandPool(family uint32) (CommandPool, error)
	DestroyCommandPool(p CommandPool)
	AllocateCommandBuffers(p CommandPool, count int) ([]CommandBuffer, error)
	ResetCommandBuffer(cb CommandBuffer) error
	// BeginCommandBuffer starts a one-time-submit recording.
	BeginCommandBuffer(cb CommandBuffer) error
	EndCommandBuffer(cb CommandBuffer) error

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	// WaitForFence blocks without timeout until f is signaled.
	WaitForFence(f Fence) error
	ResetFence(f Fence) error
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	QueueSubmit(q Queue, info SubmitInfo, signal Fence) error

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreateDescriptorPool(sizes []DescriptorPoolSize, maxSets uint32) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSet(p DescriptorPool, l DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSet(set DescriptorSet, writes []DescriptorWrite)

	CreatePipelineLayout(sets []DescriptorSetLayout, pushConstantSize uint32) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	CreateGraphicsPipeline(info PipelineInfo) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	CommandRecorder
}

// CommandRecorder records commands into a command buffer in the recording state.
type CommandRecorder interface {
	CmdImageBarrier(cb CommandBuffer, b ImageBarrier)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, extent Extent2D)
	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	CmdSetViewport(cb CommandBuffer, vp Viewport)
	CmdSetScissor(cb CommandBuffer, r Rect2D)
	CmdBindDescriptorSets(cb CommandBuffer, l PipelineLayout, sets []DescriptorSet)
	CmdPushConstants(cb CommandBuffer, l PipelineLayout, stages ShaderStage, data []byte)
	CmdBindVertexBuffer(cb CommandBuffer, b Buffer)
	CmdBindIndexBuffer(cb CommandBuffer, b Buffer)
	CmdDrawIndexed(cb CommandBuffer, indexCount uint32)
}
