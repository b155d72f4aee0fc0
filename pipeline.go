package vkg

import (
	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/sync/errgroup"
)

// GraphicsPipeline is immutable once built. Changing any state means building
// a new one from a modified copy of Config.
type GraphicsPipeline struct {
	Device     *Device
	VKPipeline vk.Pipeline
	Layout     *PipelineLayout
	Config     *GraphicsPipelineConfig
}

func (p *GraphicsPipeline) Destroy() {
	vk.DestroyPipeline(p.Device.VKDevice, p.VKPipeline, nil)
	p.Layout.Destroy()
}

// PipelineBuilder creates graphics pipelines compatible with RenderPass.
type PipelineBuilder struct {
	Device     *Device
	RenderPass vk.RenderPass
	// Cache is optional
	Cache *PipelineCache
}

// Build loads the shader stages of cfg and creates the pipeline and its
// layout. Every failure is fatal.
func (b *PipelineBuilder) Build(cfg *GraphicsPipelineConfig) (*GraphicsPipeline, error) {
	start := hrtime.Now()

	cfg = cfg.Clone()
	if err := cfg.Check(b.Device.PipelineLimits()); err != nil {
		return nil, Fatal(StagePipeline, err)
	}

	modules, err := b.loadStages(cfg.Stages)
	if err != nil {
		return nil, Fatal(StagePipeline, err)
	}
	defer func() {
		for _, m := range modules {
			m.Destroy()
		}
	}()

	stages := make([]vk.PipelineShaderStageCreateInfo, len(modules))
	for i, m := range modules {
		stages[i] = m.VKPipelineShaderStageCreateInfo(cfg.Stages[i].Stage, cfg.Stages[i].EntryPoint)
	}

	layout, err := b.Device.CreatePipelineLayoutWithPushConstants(cfg.DescriptorSetLayouts, cfg.pushConstantRanges())
	if err != nil {
		return nil, Fatal(StagePipeline, errors.Wrap(err, "create pipeline layout"))
	}

	var cache vk.PipelineCache
	if b.Cache != nil {
		cache = b.Cache.VKPipelineCache
	}

	createInfo := cfg.VKGraphicsPipelineCreateInfo(stages, layout.VKPipelineLayout, b.RenderPass)
	pipelines := make([]vk.Pipeline, 1)
	err = vk.Error(vk.CreateGraphicsPipelines(b.Device.VKDevice, cache, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines))
	if err != nil {
		layout.Destroy()
		return nil, Fatal(StagePipeline, errors.Wrap(err, "create graphics pipeline"))
	}

	Logger().Info("pipeline built",
		"stages", len(stages),
		"polygonMode", cfg.PolygonMode,
		"pushConstants", cfg.PushConstantSize,
		"elapsed", hrtime.Since(start))

	return &GraphicsPipeline{
		Device:     b.Device,
		VKPipeline: pipelines[0],
		Layout:     layout,
		Config:     cfg,
	}, nil
}

// loadStages reads every SPIR-V file concurrently, then creates the modules.
func (b *PipelineBuilder) loadStages(stages []ShaderStage) ([]*ShaderModule, error) {
	code := make([][]uint32, len(stages))

	var g errgroup.Group
	for i := range stages {
		i := i
		g.Go(func() error {
			words, err := ReadSPIRV(stages[i].Path)
			code[i] = words
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	modules := make([]*ShaderModule, 0, len(stages))
	for i, words := range code {
		m, err := b.Device.CreateShaderModule(words, stages[i].Path)
		if err != nil {
			for _, created := range modules {
				created.Destroy()
			}
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// Limits reports the pipeline state the device supports.
func (b *PipelineBuilder) Limits() PipelineLimits {
	return b.Device.PipelineLimits()
}

// Release destroys a pipeline built by b.
func (b *PipelineBuilder) Release(p *GraphicsPipeline) {
	p.Destroy()
}
