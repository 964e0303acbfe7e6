// Package gpu defines the backend-neutral device interface the renderer is written against.
//
// Objects are referred to by opaque typed handles. The zero value of every handle type is
// the null handle. Enumerations that have a Vulkan counterpart use the same numeric values
// so a backend can convert them with a plain cast.
package gpu

// Handle types. Each backend decides what a handle refers to.
type (
	PhysicalDevice      uint64
	Surface             uint64
	Queue               uint64
	Swapchain           uint64
	Image               uint64
	ImageView           uint64
	Memory              uint64
	Buffer              uint64
	Sampler             uint64
	RenderPass          uint64
	Framebuffer         uint64
	CommandPool         uint64
	CommandBuffer       uint64
	Fence               uint64
	Semaphore           uint64
	ShaderModule        uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	PipelineLayout      uint64
	Pipeline            uint64
)

// UndefinedExtent is the value a surface reports as its current width and height when the
// swapchain extent is decided by the application.
const UndefinedExtent = ^uint32(0)

// Extent2D is a width and height in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero.
func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// Undefined reports whether e is the surface "decided by swapchain" sentinel.
func (e Extent2D) Undefined() bool {
	return e.Width == UndefinedExtent
}

type Offset2D struct {
	X int32
	Y int32
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// Format mirrors VkFormat.
type Format int32

const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatD16Unorm           Format = 124
	FormatD32Sfloat          Format = 126
)

// ColorSpace mirrors VkColorSpaceKHR.
type ColorSpace int32

const ColorSpaceSrgbNonlinear ColorSpace = 0

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode mirrors VkPresentModeKHR.
type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

// SurfaceTransform mirrors VkSurfaceTransformFlagBitsKHR.
type SurfaceTransform uint32

const SurfaceTransformIdentity SurfaceTransform = 0x1

// CompositeAlpha mirrors VkCompositeAlphaFlagBitsKHR.
type CompositeAlpha uint32

const (
	CompositeAlphaOpaque         CompositeAlpha = 0x1
	CompositeAlphaPreMultiplied  CompositeAlpha = 0x2
	CompositeAlphaPostMultiplied CompositeAlpha = 0x4
	CompositeAlphaInherit        CompositeAlpha = 0x8
)

type SurfaceCapabilities struct {
	MinImageCount           uint32
	MaxImageCount           uint32 // 0 means no limit
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	SupportedTransforms     SurfaceTransform
	CurrentTransform        SurfaceTransform
	SupportedCompositeAlpha CompositeAlpha
}

// QueueFlags mirrors VkQueueFlags.
type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

type QueueFamily struct {
	Flags QueueFlags
	Count uint32
}

type PhysicalDeviceInfo struct {
	Name       string
	Type       string
	APIVersion uint32
}

// MemoryProperty mirrors VkMemoryPropertyFlags.
type MemoryProperty uint32

const (
	MemoryDeviceLocal  MemoryProperty = 0x1
	MemoryHostVisible  MemoryProperty = 0x2
	MemoryHostCoherent MemoryProperty = 0x4
)

type MemoryType struct {
	Properties MemoryProperty
	HeapIndex  uint32
}

type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// BufferUsage mirrors VkBufferUsageFlags.
type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x1
	BufferUsageTransferDst BufferUsage = 0x2
	BufferUsageUniform     BufferUsage = 0x10
	BufferUsageIndex       BufferUsage = 0x40
	BufferUsageVertex      BufferUsage = 0x80
)

// ImageUsage mirrors VkImageUsageFlags.
type ImageUsage uint32

const (
	ImageUsageTransferDst            ImageUsage = 0x2
	ImageUsageSampled                ImageUsage = 0x4
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
)

// Aspect mirrors VkImageAspectFlags.
type Aspect uint32

const (
	AspectColor Aspect = 0x1
	AspectDepth Aspect = 0x2
)

type ImageInfo struct {
	Format Format
	Extent Extent2D
	Usage  ImageUsage
}

type ImageViewInfo struct {
	Image  Image
	Format Format
	Aspect Aspect
}

type SwapchainInfo struct {
	Surface        Surface
	MinImageCount  uint32
	Format         SurfaceFormat
	Extent         Extent2D
	PreTransform   SurfaceTransform
	CompositeAlpha CompositeAlpha
	PresentMode    PresentMode
}

// PipelineStage mirrors VkPipelineStageFlags.
type PipelineStage uint32

const (
	StageTopOfPipe             PipelineStage = 0x1
	StageVertexShader          PipelineStage = 0x8
	StageFragmentShader        PipelineStage = 0x80
	StageEarlyFragmentTests    PipelineStage = 0x100
	StageLateFragmentTests     PipelineStage = 0x200
	StageColorAttachmentOutput PipelineStage = 0x400
	StageTransfer              PipelineStage = 0x1000
	StageBottomOfPipe          PipelineStage = 0x2000
)

type SubmitInfo struct {
	Wait       []Semaphore
	WaitStages []PipelineStage
	Commands   []CommandBuffer
	Signal     []Semaphore
}

type PresentInfo struct {
	Wait       []Semaphore
	Swapchain  Swapchain
	ImageIndex uint32
}

// Layout is an image layout a recorded barrier transitions to.
type Layout int32

const (
	LayoutUndefined              Layout = 0
	LayoutColorAttachment        Layout = 2
	LayoutDepthStencilAttachment Layout = 3
	LayoutShaderReadOnly         Layout = 5
	LayoutTransferDst            Layout = 7
	LayoutPresentSrc             Layout = 1000001002
)

type ImageBarrier struct {
	Image     Image
	Aspect    Aspect
	OldLayout Layout
	NewLayout Layout
	SrcStage  PipelineStage
	DstStage  PipelineStage
}

type ClearValues struct {
	Color [4]float32
	Depth float32
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect2D
	Clear       ClearValues
}

// DescriptorType mirrors VkDescriptorType.
type DescriptorType int32

const (
	DescriptorCombinedImageSampler DescriptorType = 1
	DescriptorUniformBuffer        DescriptorType = 6
)

// ShaderStage mirrors VkShaderStageFlags.
type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 0x1
	ShaderStageFragment ShaderStage = 0x10
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorWrite points one binding of a set at a buffer range or an image view and sampler.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	Buffer  Buffer
	Range   uint64
	View    ImageView
	Sampler Sampler
}

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

type PipelineInfo struct {
	RenderPass   RenderPass
	Layout       PipelineLayout
	Vertex       ShaderModule
	Fragment     ShaderModule
	VertexStride uint32
	Attributes   []VertexAttribute
}
