package driver

// Handles are opaque ids handed out by a Driver. Zero is always the null handle.
type (
	Queue               uint64
	Swapchain           uint64
	Image               uint64
	ImageView           uint64
	Buffer              uint64
	Sampler             uint64
	RenderPass          uint64
	Framebuffer         uint64
	ShaderModule        uint64
	PipelineLayout      uint64
	Pipeline            uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	Semaphore           uint64
	Fence               uint64
	CommandPool         uint64
	CommandBuffer       uint64
)

// Enumerations below share their numeric values with Vulkan so a backend can
// convert them with a plain cast.

type Format uint32

const (
	FormatUndefined          Format = 0
	FormatR8Unorm            Format = 9
	FormatR8G8Unorm          Format = 16
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR16G16B16A16Sfloat Format = 97
	FormatR32G32B32A32Sfloat Format = 109
	FormatD32Sfloat          Format = 126
	FormatD24UnormS8Uint     Format = 129
	FormatD32SfloatS8Uint    Format = 130
)

type ColorSpace uint32

const ColorSpaceSrgbNonlinear ColorSpace = 0

type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "IMMEDIATE"
	case PresentModeMailbox:
		return "MAILBOX"
	case PresentModeFifo:
		return "FIFO"
	case PresentModeFifoRelaxed:
		return "FIFO_RELAXED"
	}
	return "UNKNOWN"
}

type ImageLayout uint32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

type PipelineStage uint32

const (
	PipelineStageTopOfPipe             PipelineStage = 0x00000001
	PipelineStageVertexShader          PipelineStage = 0x00000008
	PipelineStageFragmentShader        PipelineStage = 0x00000080
	PipelineStageEarlyFragmentTests    PipelineStage = 0x00000100
	PipelineStageLateFragmentTests     PipelineStage = 0x00000200
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
	PipelineStageTransfer              PipelineStage = 0x00001000
	PipelineStageBottomOfPipe          PipelineStage = 0x00002000
)

type Access uint32

const (
	AccessShaderRead                  Access = 0x00000020
	AccessColorAttachmentRead         Access = 0x00000080
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferRead                Access = 0x00000800
	AccessTransferWrite               Access = 0x00001000
)

type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x01
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageStorage                ImageUsage = 0x08
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
)

type ImageAspect uint32

const (
	ImageAspectColor   ImageAspect = 0x1
	ImageAspectDepth   ImageAspect = 0x2
	ImageAspectStencil ImageAspect = 0x4
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x01
	BufferUsageTransferDst BufferUsage = 0x02
	BufferUsageUniform     BufferUsage = 0x10
	BufferUsageIndex       BufferUsage = 0x40
	BufferUsageVertex      BufferUsage = 0x80
)

type MemoryProperty uint32

const (
	MemoryPropertyDeviceLocal  MemoryProperty = 0x1
	MemoryPropertyHostVisible  MemoryProperty = 0x2
	MemoryPropertyHostCoherent MemoryProperty = 0x4
)

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

type FormatFeature uint32

const (
	FormatFeatureSampledImage             FormatFeature = 0x0001
	FormatFeatureColorAttachment          FormatFeature = 0x0080
	FormatFeatureDepthStencilAttachment   FormatFeature = 0x0200
	FormatFeatureBlitSrc                  FormatFeature = 0x0400
	FormatFeatureBlitDst                  FormatFeature = 0x0800
	FormatFeatureSampledImageFilterLinear FormatFeature = 0x1000
)

type ImageTiling uint32

const (
	ImageTilingOptimal ImageTiling = 0
	ImageTilingLinear  ImageTiling = 1
)

type SampleCount uint32

const (
	SampleCount1 SampleCount = 0x01
	SampleCount2 SampleCount = 0x02
	SampleCount4 SampleCount = 0x04
	SampleCount8 SampleCount = 0x08
)

type Filter uint32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

type MipmapMode uint32

const (
	MipmapModeNearest MipmapMode = 0
	MipmapModeLinear  MipmapMode = 1
)

type AddressMode uint32

const (
	AddressModeRepeat         AddressMode = 0
	AddressModeMirroredRepeat AddressMode = 1
	AddressModeClampToEdge    AddressMode = 2
	AddressModeClampToBorder  AddressMode = 3
)

type LoadOp uint32

const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

type StoreOp uint32

const (
	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
)

type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 0x01
	ShaderStageFragment ShaderStage = 0x10
)

type DeviceType uint32

const (
	DeviceTypeOther         DeviceType = 0
	DeviceTypeIntegratedGPU DeviceType = 1
	DeviceTypeDiscreteGPU   DeviceType = 2
	DeviceTypeVirtualGPU    DeviceType = 3
	DeviceTypeCPU           DeviceType = 4
)

func (d DeviceType) String() string {
	switch d {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

type ImageViewType uint32

const (
	ImageViewType2D   ImageViewType = 1
	ImageViewTypeCube ImageViewType = 3
)

type CullMode uint32

const (
	CullModeNone  CullMode = 0
	CullModeFront CullMode = 1
	CullModeBack  CullMode = 2
)

type DescriptorType uint32

const (
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeUniformBufferDynamic DescriptorType = 8
)

// Status is the non-error outcome of acquire and present.
type Status int

const (
	StatusSuccess Status = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusSuboptimal:
		return "SUBOPTIMAL"
	case StatusOutOfDate:
		return "OUT_OF_DATE"
	}
	return "UNKNOWN"
}

type Extent struct {
	Width  uint32
	Height uint32
}

// AnyExtent is reported as the current width when the surface lets the
// swapchain pick its size.
const AnyExtent uint32 = 0xFFFFFFFF

type Offset struct {
	X int32
	Y int32
	Z int32
}

type Rect struct {
	X, Y          int32
	Width, Height uint32
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// DeviceFeatures is the subset of physical device features the renderer can require.
type DeviceFeatures struct {
	GeometryShader    bool
	SamplerAnisotropy bool
	FillModeNonSolid  bool
	SampleRateShading bool
}

// Missing reports the names of features requested in want that f lacks.
func (f DeviceFeatures) Missing(want DeviceFeatures) []string {
	var out []string
	if want.GeometryShader && !f.GeometryShader {
		out = append(out, "geometryShader")
	}
	if want.SamplerAnisotropy && !f.SamplerAnisotropy {
		out = append(out, "samplerAnisotropy")
	}
	if want.FillModeNonSolid && !f.FillModeNonSolid {
		out = append(out, "fillModeNonSolid")
	}
	if want.SampleRateShading && !f.SampleRateShading {
		out = append(out, "sampleRateShading")
	}
	return out
}

type QueueFamily struct {
	Flags   QueueFlags
	Count   uint32
	Present bool
}

// Adapter describes one physical device.
type Adapter struct {
	Index         int
	Name          string
	Type          DeviceType
	APIVersion    uint32
	DriverVersion uint32
	Features      DeviceFeatures
	Extensions    []string
	QueueFamilies []QueueFamily
	MaxAnisotropy float32
}

type InstanceInfo struct {
	AppName    string
	EngineName string
	APIVersion uint32
	Extensions []string
	Layers     []string
	Debug      bool
}

type DeviceInfo struct {
	Adapter       int
	QueueFamilies []uint32
	Extensions    []string
	Features      DeviceFeatures
	Layers        []string
}

type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SwapchainInfo struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent
	PresentMode   PresentMode
	QueueFamilies []uint32
	Old           Swapchain
}

type ImageInfo struct {
	Width, Height  uint32
	MipLevels      uint32
	ArrayLayers    uint32
	Format         Format
	Tiling         ImageTiling
	Usage          ImageUsage
	Samples        SampleCount
	Memory         MemoryProperty
	CubeCompatible bool
}

type SubresourceRange struct {
	Aspect     ImageAspect
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

type ImageViewInfo struct {
	Image    Image
	ViewType ImageViewType
	Format   Format
	Range    SubresourceRange
}

type BufferInfo struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryProperty
}

type SamplerInfo struct {
	MagFilter     Filter
	MinFilter     Filter
	MipmapMode    MipmapMode
	AddressU      AddressMode
	AddressV      AddressMode
	AddressW      AddressMode
	Anisotropy    bool
	MaxAnisotropy float32
	MinLod        float32
	MaxLod        float32
}

type AttachmentInfo struct {
	Format        Format
	Samples       SampleCount
	Load          LoadOp
	Store         StoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

// RenderPassInfo describes a single-subpass render pass with one color
// attachment and an optional depth attachment.
type RenderPassInfo struct {
	Color AttachmentInfo
	Depth *AttachmentInfo
}

type FramebufferInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Width       uint32
	Height      uint32
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type PipelineLayoutInfo struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

type ShaderStageInfo struct {
	Stage  ShaderStage
	Module ShaderModule
	Entry  string
}

// PipelineInfo describes a graphics pipeline without vertex input; geometry is
// generated in the vertex shader from the vertex index.
type PipelineInfo struct {
	Stages      []ShaderStageInfo
	Layout      PipelineLayout
	RenderPass  RenderPass
	Samples     SampleCount
	CullMode    CullMode
	DepthTest   bool
	DepthWrite  bool
	BlendEnable bool
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolInfo struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect
	ClearValues []ClearValue
}

type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess Access
	DstAccess Access
	SrcStage  PipelineStage
	DstStage  PipelineStage
	Range     SubresourceRange
}

type ImageSubresourceLayers struct {
	Aspect     ImageAspect
	Mip        uint32
	BaseLayer  uint32
	LayerCount uint32
}

type BufferImageCopy struct {
	BufferOffset uint64
	Subresource  ImageSubresourceLayers
	Offset       Offset
	Extent       Extent
}

type ImageCopy struct {
	Src    ImageSubresourceLayers
	Dst    ImageSubresourceLayers
	Extent Extent
}

type ImageBlit struct {
	Src       ImageSubresourceLayers
	SrcOffset [2]Offset
	Dst       ImageSubresourceLayers
	DstOffset [2]Offset
	Filter    Filter
}

type Submit struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type Present struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}
