package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// PipelineFactory builds and releases graphics pipelines. *PipelineBuilder
// implements it.
type PipelineFactory interface {
	Build(cfg *GraphicsPipelineConfig) (*GraphicsPipeline, error)
	Release(p *GraphicsPipeline)
	Limits() PipelineLimits
}

// Idler blocks until the device has finished all submitted work. *Device implements it.
type Idler interface {
	WaitIdle() error
}

// RendererParts are the components a Renderer drives. All of them are
// owned by the caller.
type RendererParts struct {
	Device     Idler
	Sync       *FrameSynchronizer
	Swapchain  *SwapchainManager
	Recorder   *CommandRecorder
	Submitter  Submitter
	Pipelines  PipelineFactory
	Table      DescriptorBinding
	BaseConfig *GraphicsPipelineConfig
}

// Renderer runs the per frame loop: acquire a slot and an image, record,
// submit and present.
type Renderer struct {
	config RendererConfig
	parts  RendererParts

	pipeline      *GraphicsPipeline
	wireframe     bool
	wantWireframe bool

	stats FrameStats
}

// NewRenderer validates cfg and builds the initial pipeline from
// parts.BaseConfig.
func NewRenderer(cfg RendererConfig, parts RendererParts) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, Fatal(StageInit, errors.Wrap(err, "renderer config"))
	}
	if parts.Sync == nil || parts.Swapchain == nil || parts.Recorder == nil ||
		parts.Submitter == nil || parts.Pipelines == nil || parts.Table == nil ||
		parts.Device == nil || parts.BaseConfig == nil {
		return nil, errors.AssertionFailedf("renderer created with missing parts")
	}

	r := &Renderer{
		config:        cfg,
		parts:         parts,
		wireframe:     cfg.Wireframe,
		wantWireframe: cfg.Wireframe,
	}

	p, err := parts.Pipelines.Build(r.pipelineConfig(cfg.Wireframe))
	if err != nil {
		return nil, err
	}
	r.pipeline = p

	parts.Recorder.SetPipeline(p)
	parts.Recorder.SetTable(parts.Table)
	parts.Recorder.SetView(cfg.View)
	parts.Recorder.SetClearColor(cfg.ClearColor)

	return r, nil
}

func (r *Renderer) pipelineConfig(wireframe bool) *GraphicsPipelineConfig {
	if !wireframe {
		return r.parts.BaseConfig.WithPolygonMode(vk.PolygonModeFill)
	}
	return r.parts.BaseConfig.WithPolygonMode(vk.PolygonModeLine).WithLineWidth(r.config.LineWidth)
}

// SetWireframe requests the scene to be drawn as lines. The pipeline is
// replaced at the start of the next frame, once the device is idle.
func (r *Renderer) SetWireframe(on bool) error {
	if on && !r.parts.Pipelines.Limits().FillModeNonSolid {
		return errors.WithHint(
			errors.New("wireframe rendering is not supported"),
			"the device lacks the fillModeNonSolid feature")
	}
	r.wantWireframe = on
	return nil
}

// Wireframe reports whether the active pipeline draws lines.
func (r *Renderer) Wireframe() bool {
	return r.wireframe
}

// SetView updates the camera and light used for the next frame.
func (r *Renderer) SetView(view ViewParameters) {
	r.config.View = view
	r.parts.Recorder.SetView(view)
}

func (r *Renderer) Pipeline() *GraphicsPipeline {
	return r.pipeline
}

func (r *Renderer) Stats() *FrameStats {
	return &r.stats
}

// Invalidate schedules a swapchain rebuild, for window resize callbacks.
func (r *Renderer) Invalidate() {
	r.parts.Swapchain.Invalidate()
}

// applyPending rebuilds the swapchain and pipeline if either was requested.
func (r *Renderer) applyPending() error {
	if r.parts.Swapchain.NeedsRebuild() {
		if err := r.parts.Swapchain.Rebuild(); err != nil {
			return err
		}
	}
	if r.wantWireframe == r.wireframe {
		return nil
	}

	if err := r.parts.Device.WaitIdle(); err != nil {
		return Fatal(StagePipeline, errors.Wrap(err, "wait for device idle"))
	}
	p, err := r.parts.Pipelines.Build(r.pipelineConfig(r.wantWireframe))
	if err != nil {
		return err
	}
	r.parts.Pipelines.Release(r.pipeline)
	r.pipeline = p
	r.wireframe = r.wantWireframe
	r.parts.Recorder.SetPipeline(p)

	Logger().Debug("pipeline replaced", "wireframe", r.wireframe)
	return nil
}

// DrawFrame renders items into the next swapchain image. A frame whose image
// turned out to be out of date is skipped without error. Every returned error
// is fatal.
func (r *Renderer) DrawFrame(items []DrawItem) error {
	r.stats.Begin()

	if err := r.applyPending(); err != nil {
		return fatalAt(StagePipeline, err)
	}

	sync := r.parts.Sync
	slot, err := sync.AcquireSlot()
	if err != nil {
		return fatalAt(StageAcquire, err)
	}

	imageIndex, status, err := r.parts.Swapchain.AcquireNextImage(slot.ImageAcquired)
	if err != nil {
		return fatalAt(StageAcquire, err)
	}
	if status == AcquireInvalidated {
		if err := sync.Abandon(); err != nil {
			return fatalAt(StageAcquire, err)
		}
		Logger().Debug("frame skipped, swapchain out of date", "slot", slot.Index)
		return fatalAt(StageRebuild, r.parts.Swapchain.Rebuild())
	}

	if err := sync.BeginRecording(); err != nil {
		return fatalAt(StageRecord, err)
	}

	r.parts.Recorder.SetFrame(sync.Frames())
	if err := r.parts.Recorder.Record(slot.Commands, imageIndex, items); err != nil {
		return fatalAt(StageRecord, err)
	}

	err = r.parts.Submitter.SubmitFrame(slot.Commands,
		slot.ImageAcquired, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		slot.RenderComplete, slot.InFlight)
	if err != nil {
		return Fatal(StageSubmit, errors.Wrapf(err, "submit frame slot %d", slot.Index))
	}
	if err := sync.MarkSubmitted(); err != nil {
		return fatalAt(StageSubmit, err)
	}

	if err := r.parts.Swapchain.Present(imageIndex, slot.RenderComplete); err != nil {
		return fatalAt(StagePresent, err)
	}
	if err := sync.Advance(); err != nil {
		return fatalAt(StagePresent, err)
	}

	r.stats.End(sync.LastFenceWait())
	if r.stats.Wrapped() {
		Logger().Debug("frame stats", "stats", &r.stats)
	}
	return nil
}

// Shutdown waits for the device and releases the active pipeline. The parts
// are left to their owner.
func (r *Renderer) Shutdown() error {
	err := r.parts.Device.WaitIdle()
	if r.pipeline != nil {
		r.parts.Pipelines.Release(r.pipeline)
		r.pipeline = nil
		r.parts.Recorder.SetPipeline(nil)
	}
	if err != nil {
		return Fatal(StageShutdown, errors.Wrap(err, "wait for device idle"))
	}
	return nil
}
