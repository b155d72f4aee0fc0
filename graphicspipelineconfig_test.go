package vkg

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestGraphicsPipelineConfigCheck(t *testing.T) {
	limits := PipelineLimits{MaxPushConstantsSize: 256, FillModeNonSolid: true,
		SampleCounts: vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit | vk.SampleCount4Bit)}
	shading := limits
	shading.SampleRateShading = true

	tests := []struct {
		name   string
		edit   func(c *GraphicsPipelineConfig)
		limits PipelineLimits
		ok     bool
	}{
		{"defaults", func(c *GraphicsPipelineConfig) {}, limits, true},
		{"no stages", func(c *GraphicsPipelineConfig) { c.Stages = nil }, limits, false},
		{"unaligned push constants", func(c *GraphicsPipelineConfig) { c.PushConstantSize = 66 }, limits, false},
		{"push constants over limit", func(c *GraphicsPipelineConfig) {}, PipelineLimits{MaxPushConstantsSize: 128}, false},
		{"line mode", func(c *GraphicsPipelineConfig) { c.PolygonMode = vk.PolygonModeLine }, limits, true},
		{"line mode unsupported", func(c *GraphicsPipelineConfig) { c.PolygonMode = vk.PolygonModeLine },
			PipelineLimits{MaxPushConstantsSize: 256}, false},
		{"zero line width", func(c *GraphicsPipelineConfig) { c.LineWidth = 0 }, limits, false},
		{"wide lines unsupported", func(c *GraphicsPipelineConfig) { c.LineWidth = 2 }, limits, false},
		{"wide lines", func(c *GraphicsPipelineConfig) { c.LineWidth = 2 },
			PipelineLimits{MaxPushConstantsSize: 256, WideLines: true}, true},
		{"4x msaa", func(c *GraphicsPipelineConfig) { c.Samples = vk.SampleCount4Bit }, limits, true},
		{"8x msaa unsupported", func(c *GraphicsPipelineConfig) { c.Samples = vk.SampleCount8Bit }, limits, false},
		{"unset samples", func(c *GraphicsPipelineConfig) { c.Samples = 0 }, PipelineLimits{MaxPushConstantsSize: 256}, true},
		{"sample shading unsupported", func(c *GraphicsPipelineConfig) { *c = *c.WithSamples(vk.SampleCount4Bit, 0.2) }, limits, false},
		{"sample shading", func(c *GraphicsPipelineConfig) { *c = *c.WithSamples(vk.SampleCount4Bit, 0.2) }, shading, true},
		{"sample shading out of range", func(c *GraphicsPipelineConfig) { *c = *c.WithSamples(vk.SampleCount4Bit, 1.5) }, shading, false},
		{"sample shading single sample", func(c *GraphicsPipelineConfig) { c.MinSampleShading = 0.5 }, limits, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testPipelineConfig()
			tt.edit(c)
			err := c.Check(tt.limits)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGraphicsPipelineConfigClone(t *testing.T) {
	c := testPipelineConfig()
	c.AddBlendAttachment(AlphaBlendAttachment())

	clone := c.Clone()
	clone.Stages[0].Path = "other.spv"
	clone.DynamicState[0] = vk.DynamicStateLineWidth
	clone.BlendAttachments[0].BlendEnable = vk.False
	clone.AddShaderStage("geom.spv", "main", vk.ShaderStageGeometryBit)

	if c.Stages[0].Path != "scene.vert.spv" || len(c.Stages) != 2 {
		t.Error("clone shares stages")
	}
	if c.DynamicState[0] != vk.DynamicStateViewport {
		t.Error("clone shares dynamic state")
	}
	if c.BlendAttachments[0].BlendEnable != vk.True {
		t.Error("clone shares blend attachments")
	}
}

func TestGraphicsPipelineConfigVariants(t *testing.T) {
	c := testPipelineConfig()
	line := c.WithPolygonMode(vk.PolygonModeLine).WithLineWidth(1.5)

	if c.PolygonMode != vk.PolygonModeFill || c.LineWidth != 1 {
		t.Error("variant modified the base config")
	}
	if line.PolygonMode != vk.PolygonModeLine || line.LineWidth != 1.5 {
		t.Errorf("variant = %d %v", line.PolygonMode, line.LineWidth)
	}
}

func TestGraphicsPipelineConfigPushConstants(t *testing.T) {
	c := NewGraphicsPipelineConfig()
	ranges := c.pushConstantRanges()
	if len(ranges) != 1 || ranges[0].Size != PushConstantSize || ranges[0].Offset != 0 {
		t.Errorf("ranges = %+v", ranges)
	}
	if ranges[0].StageFlags != PushConstantStages {
		t.Errorf("stages = %d", ranges[0].StageFlags)
	}

	c.SetPushConstants(0, 0)
	if ranges := c.pushConstantRanges(); ranges != nil {
		t.Errorf("empty range produced %+v", ranges)
	}
}

func TestPipelineLimitsSamples(t *testing.T) {
	limits := PipelineLimits{SampleCounts: vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit | vk.SampleCount4Bit | vk.SampleCount8Bit)}
	tests := []struct {
		requested int
		want      vk.SampleCountFlagBits
	}{
		{0, vk.SampleCount8Bit},
		{1, vk.SampleCount1Bit},
		{4, vk.SampleCount4Bit},
		{6, vk.SampleCount4Bit},
		{64, vk.SampleCount8Bit},
	}
	for _, tt := range tests {
		if got := limits.Samples(tt.requested); got != tt.want {
			t.Errorf("Samples(%d) = %d, want %d", tt.requested, got, tt.want)
		}
	}
	if got := (PipelineLimits{}).Samples(0); got != vk.SampleCount1Bit {
		t.Errorf("no reported counts gave %d samples", got)
	}
}

func TestGraphicsPipelineConfigMultisampleState(t *testing.T) {
	c := testPipelineConfig()
	info := c.VKGraphicsPipelineCreateInfo(nil, vk.NullPipelineLayout, vk.NullRenderPass)
	if ms := info.PMultisampleState; ms.RasterizationSamples != vk.SampleCount1Bit || ms.SampleShadingEnable != vk.False {
		t.Errorf("default multisample state %+v", ms)
	}

	msaa := c.WithSamples(vk.SampleCount4Bit, 0.25)
	if c.Samples != vk.SampleCount1Bit {
		t.Error("variant modified the base config")
	}
	info = msaa.VKGraphicsPipelineCreateInfo(nil, vk.NullPipelineLayout, vk.NullRenderPass)
	ms := info.PMultisampleState
	if ms.RasterizationSamples != vk.SampleCount4Bit || ms.SampleShadingEnable != vk.True || ms.MinSampleShading != 0.25 {
		t.Errorf("msaa multisample state %+v", ms)
	}
}
