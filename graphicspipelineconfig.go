package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ShaderStage names a precompiled SPIR-V file and the stage it runs in.
type ShaderStage struct {
	Path       string
	EntryPoint string
	Stage      vk.ShaderStageFlagBits
}

// GraphicsPipelineConfig describes a graphics pipeline. A built pipeline keeps
// its own copy, so changing a config never affects an existing pipeline.
type GraphicsPipelineConfig struct {
	Stages []ShaderStage

	VertexInputBindingDescriptions   []vk.VertexInputBindingDescription
	VertexInputAttributeDescriptions []vk.VertexInputAttributeDescription

	DescriptorSetLayouts []vk.DescriptorSetLayout

	// PushConstantSize is the size of the single push constant range starting
	// at offset 0, 0 for none.
	PushConstantSize   uint32
	PushConstantStages vk.ShaderStageFlags

	// PrimitiveTopology defaults to VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST
	PrimitiveTopology vk.PrimitiveTopology

	// PolygonMode defaults to VK_POLYGON_MODE_FILL. LINE requires the
	// fillModeNonSolid device feature.
	PolygonMode vk.PolygonMode

	// LineWidth defaults to 1.0, wider lines require the wideLines feature
	LineWidth float32

	// CullMode defaults to vk.CullModeNone
	CullMode vk.CullModeFlagBits

	// FrontFace defaults to vk.FrontFaceCounterClockwise
	FrontFace vk.FrontFace

	// DepthTestEnable defaults to true
	DepthTestEnable bool

	// DepthWriteEnable defaults to true
	DepthWriteEnable bool

	// Samples must match the render pass, it defaults to 1
	Samples vk.SampleCountFlagBits

	// MinSampleShading enables sample shading when above 0. It requires the
	// sampleRateShading feature and is ignored with one sample.
	MinSampleShading float32

	// BlendAttachments defaults to a single attachment with blending off
	BlendAttachments []vk.PipelineColorBlendAttachmentState

	// DynamicState defaults to viewport and scissor
	DynamicState []vk.DynamicState
}

// NewGraphicsPipelineConfig returns the scene defaults, with a push constant
// range sized for PushConstantBlock.
func NewGraphicsPipelineConfig() *GraphicsPipelineConfig {
	return &GraphicsPipelineConfig{
		PushConstantSize:   PushConstantSize,
		PushConstantStages: PushConstantStages,
		PrimitiveTopology:  vk.PrimitiveTopologyTriangleList,
		PolygonMode:        vk.PolygonModeFill,
		LineWidth:          1.0,
		CullMode:           vk.CullModeNone,
		FrontFace:          vk.FrontFaceCounterClockwise,
		DepthTestEnable:    true,
		DepthWriteEnable:   true,
		Samples:            vk.SampleCount1Bit,
		DynamicState:       []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}
}

// Clone returns a deep copy of g.
func (g *GraphicsPipelineConfig) Clone() *GraphicsPipelineConfig {
	c := *g
	c.Stages = append([]ShaderStage(nil), g.Stages...)
	c.VertexInputBindingDescriptions = append([]vk.VertexInputBindingDescription(nil), g.VertexInputBindingDescriptions...)
	c.VertexInputAttributeDescriptions = append([]vk.VertexInputAttributeDescription(nil), g.VertexInputAttributeDescriptions...)
	c.DescriptorSetLayouts = append([]vk.DescriptorSetLayout(nil), g.DescriptorSetLayouts...)
	c.BlendAttachments = append([]vk.PipelineColorBlendAttachmentState(nil), g.BlendAttachments...)
	c.DynamicState = append([]vk.DynamicState(nil), g.DynamicState...)
	return &c
}

// WithPolygonMode returns a copy of g using mode.
func (g *GraphicsPipelineConfig) WithPolygonMode(mode vk.PolygonMode) *GraphicsPipelineConfig {
	c := g.Clone()
	c.PolygonMode = mode
	return c
}

// WithLineWidth returns a copy of g using width.
func (g *GraphicsPipelineConfig) WithLineWidth(width float32) *GraphicsPipelineConfig {
	c := g.Clone()
	c.LineWidth = width
	return c
}

// WithSamples returns a copy of g rendering with samples per pixel.
func (g *GraphicsPipelineConfig) WithSamples(samples vk.SampleCountFlagBits, minSampleShading float32) *GraphicsPipelineConfig {
	c := g.Clone()
	c.Samples = samples
	c.MinSampleShading = minSampleShading
	return c
}

// AddShaderStage adds a SPIR-V file to be loaded at build time.
func (g *GraphicsPipelineConfig) AddShaderStage(path, entryPoint string, stage vk.ShaderStageFlagBits) *GraphicsPipelineConfig {
	g.Stages = append(g.Stages, ShaderStage{Path: path, EntryPoint: entryPoint, Stage: stage})
	return g
}

// AddVertexDescriptor adds vertex descriptors based off the specified interface
func (g *GraphicsPipelineConfig) AddVertexDescriptor(v VertexDescriptor) *GraphicsPipelineConfig {
	g.VertexInputBindingDescriptions = append(g.VertexInputBindingDescriptions, v.GetBindingDescription())
	g.VertexInputAttributeDescriptions = append(g.VertexInputAttributeDescriptions, v.GetAttributeDescriptions()...)
	return g
}

func (g *GraphicsPipelineConfig) AddDescriptorSetLayout(l vk.DescriptorSetLayout) *GraphicsPipelineConfig {
	g.DescriptorSetLayouts = append(g.DescriptorSetLayouts, l)
	return g
}

func (g *GraphicsPipelineConfig) AddBlendAttachment(ba vk.PipelineColorBlendAttachmentState) *GraphicsPipelineConfig {
	g.BlendAttachments = append(g.BlendAttachments, ba)
	return g
}

// SetPushConstants sets the single push constant range.
func (g *GraphicsPipelineConfig) SetPushConstants(size uint32, stages vk.ShaderStageFlags) *GraphicsPipelineConfig {
	g.PushConstantSize = size
	g.PushConstantStages = stages
	return g
}

// AlphaBlendAttachment blends source over destination using source alpha.
func AlphaBlendAttachment() vk.PipelineColorBlendAttachmentState {
	return vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
}

// PipelineLimits are the device capabilities a pipeline config is checked against.
type PipelineLimits struct {
	MaxPushConstantsSize uint32
	FillModeNonSolid     bool
	WideLines            bool
	SampleRateShading    bool
	// SampleCounts holds the counts usable for both color and depth attachments
	SampleCounts vk.SampleCountFlags
}

// Samples picks the sample count to render with. requested 0 takes the
// largest count the device supports, otherwise the largest supported count
// not above requested. One sample is always supported.
func (l PipelineLimits) Samples(requested int) vk.SampleCountFlagBits {
	for s := vk.SampleCount64Bit; s > vk.SampleCount1Bit; s >>= 1 {
		if l.SampleCounts&vk.SampleCountFlags(s) != 0 && (requested == 0 || int(s) <= requested) {
			return s
		}
	}
	return vk.SampleCount1Bit
}

// PipelineLimits reports the limits and enabled features relevant to pipeline creation.
func (d *Device) PipelineLimits() PipelineLimits {
	limits := d.Limits()
	return PipelineLimits{
		MaxPushConstantsSize: limits.MaxPushConstantsSize,
		FillModeNonSolid:     d.EnabledFeatures.FillModeNonSolid == vk.True,
		WideLines:            d.EnabledFeatures.WideLines == vk.True,
		SampleRateShading:    d.EnabledFeatures.SampleRateShading == vk.True,
		SampleCounts:         limits.FramebufferColorSampleCounts & limits.FramebufferDepthSampleCounts,
	}
}

// Check rejects configs the device cannot build.
func (g *GraphicsPipelineConfig) Check(limits PipelineLimits) error {
	if len(g.Stages) == 0 {
		return errors.New("pipeline has no shader stages")
	}
	if g.PushConstantSize%4 != 0 {
		return errors.Newf("push constant size %d is not a multiple of 4", g.PushConstantSize)
	}
	if g.PushConstantSize > limits.MaxPushConstantsSize {
		return errors.WithHint(
			errors.Newf("push constant range of %d bytes exceeds the device limit of %d", g.PushConstantSize, limits.MaxPushConstantsSize),
			"vulkan guarantees at least 128 bytes of push constants")
	}
	if g.PolygonMode == vk.PolygonModeLine && !limits.FillModeNonSolid {
		return errors.WithHint(
			errors.New("polygon mode LINE is not supported"),
			"the device must be created with the fillModeNonSolid feature")
	}
	if g.LineWidth <= 0 {
		return errors.Newf("invalid line width %v", g.LineWidth)
	}
	if g.LineWidth != 1.0 && !limits.WideLines {
		return errors.Newf("line width %v requires the wideLines feature", g.LineWidth)
	}
	if s := g.sampleCount(); s != vk.SampleCount1Bit && limits.SampleCounts&vk.SampleCountFlags(s) == 0 {
		return errors.WithHint(
			errors.Newf("%d samples per pixel are not supported", s),
			"pick the count with PipelineLimits.Samples")
	}
	if g.MinSampleShading < 0 || g.MinSampleShading > 1 {
		return errors.Newf("min sample shading %v is outside [0, 1]", g.MinSampleShading)
	}
	if g.sampleShading() && !limits.SampleRateShading {
		return errors.WithHint(
			errors.New("sample shading is not supported"),
			"the device must be created with the sampleRateShading feature")
	}
	return nil
}

func (g *GraphicsPipelineConfig) sampleCount() vk.SampleCountFlagBits {
	if g.Samples == 0 {
		return vk.SampleCount1Bit
	}
	return g.Samples
}

func (g *GraphicsPipelineConfig) sampleShading() bool {
	return g.MinSampleShading > 0 && g.sampleCount() > vk.SampleCount1Bit
}

func (g *GraphicsPipelineConfig) pushConstantRanges() []vk.PushConstantRange {
	if g.PushConstantSize == 0 {
		return nil
	}
	return []vk.PushConstantRange{{
		StageFlags: g.PushConstantStages,
		Offset:     0,
		Size:       g.PushConstantSize,
	}}
}

// VKGraphicsPipelineCreateInfo fills a vk.GraphicsPipelineCreateInfo from the config.
func (g *GraphicsPipelineConfig) VKGraphicsPipelineCreateInfo(stages []vk.PipelineShaderStageCreateInfo, layout vk.PipelineLayout, renderPass vk.RenderPass) vk.GraphicsPipelineCreateInfo {
	var vertexInputState = vk.PipelineVertexInputStateCreateInfo{}
	vertexInputState.SType = vk.StructureTypePipelineVertexInputStateCreateInfo
	vertexInputState.VertexBindingDescriptionCount = uint32(len(g.VertexInputBindingDescriptions))
	vertexInputState.PVertexBindingDescriptions = g.VertexInputBindingDescriptions
	vertexInputState.VertexAttributeDescriptionCount = uint32(len(g.VertexInputAttributeDescriptions))
	vertexInputState.PVertexAttributeDescriptions = g.VertexInputAttributeDescriptions

	var inputAssemblyState = vk.PipelineInputAssemblyStateCreateInfo{}
	inputAssemblyState.SType = vk.StructureTypePipelineInputAssemblyStateCreateInfo
	inputAssemblyState.Topology = g.PrimitiveTopology
	inputAssemblyState.PrimitiveRestartEnable = vk.False

	// viewport and scissor are dynamic, these only provide the counts
	var viewportState = vk.PipelineViewportStateCreateInfo{}
	viewportState.SType = vk.StructureTypePipelineViewportStateCreateInfo
	viewportState.ViewportCount = 1
	viewportState.PViewports = []vk.Viewport{{Width: 1, Height: 1, MaxDepth: 1}}
	viewportState.ScissorCount = 1
	viewportState.PScissors = []vk.Rect2D{{Extent: vk.Extent2D{Width: 1, Height: 1}}}

	var rasterState = vk.PipelineRasterizationStateCreateInfo{}
	rasterState.SType = vk.StructureTypePipelineRasterizationStateCreateInfo
	rasterState.DepthClampEnable = vk.False
	rasterState.RasterizerDiscardEnable = vk.False
	rasterState.PolygonMode = g.PolygonMode
	rasterState.LineWidth = g.LineWidth
	rasterState.CullMode = vk.CullModeFlags(g.CullMode)
	rasterState.FrontFace = g.FrontFace
	rasterState.DepthBiasEnable = vk.False

	var multisampleState = vk.PipelineMultisampleStateCreateInfo{}
	multisampleState.SType = vk.StructureTypePipelineMultisampleStateCreateInfo
	multisampleState.RasterizationSamples = g.sampleCount()
	multisampleState.SampleShadingEnable = vkBool(g.sampleShading())
	multisampleState.MinSampleShading = g.MinSampleShading

	blendAttachments := g.BlendAttachments
	if len(blendAttachments) == 0 {
		blendAttachments = []vk.PipelineColorBlendAttachmentState{{
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
			BlendEnable:    vk.False,
		}}
	}

	var colorBlendState = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		PDynamicStates:    g.DynamicState,
		DynamicStateCount: uint32(len(g.DynamicState)),
	}

	var depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(g.DepthTestEnable),
		DepthWriteEnable:      vkBool(g.DepthWriteEnable),
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
		StencilTestEnable:     vk.False,
	}

	return vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PDepthStencilState:  &depthStencil,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterState,
		PMultisampleState:   &multisampleState,
		PColorBlendState:    &colorBlendState,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
	}
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
