package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// FrameContext is handed to the overlay while the scene pass is still open.
type FrameContext struct {
	ImageIndex uint32
	Extent     vk.Extent2D
	// Frame is the number of frames completed before this one
	Frame uint64
}

// Overlay records additional draws at the end of the scene pass. It must
// leave the render pass open.
type Overlay interface {
	RecordOverlay(cmd CommandEncoder, frame FrameContext) error
}

// RenderTargetSource resolves an acquired image index to the target to draw
// into. *SwapchainManager implements it.
type RenderTargetSource interface {
	RenderTarget(imageIndex uint32) (RenderTarget, error)
}

// CommandRecorder records one frame of draw items into a command buffer.
// The pipeline and descriptor table are only read while recording.
type CommandRecorder struct {
	targets  RenderTargetSource
	pipeline *GraphicsPipeline
	table    DescriptorBinding
	overlay  Overlay
	view     ViewParameters

	clearColor [4]float32
	frame      uint64
	block      PushConstantBlock
}

func NewCommandRecorder(targets RenderTargetSource) *CommandRecorder {
	return &CommandRecorder{
		targets:    targets,
		view:       DefaultViewParameters(),
		clearColor: [4]float32{0, 0, 0, 1},
	}
}

func (r *CommandRecorder) SetView(view ViewParameters) {
	r.view = view
}

func (r *CommandRecorder) View() ViewParameters {
	return r.view
}

func (r *CommandRecorder) SetPipeline(pipeline *GraphicsPipeline) {
	r.pipeline = pipeline
}

func (r *CommandRecorder) SetTable(table DescriptorBinding) {
	r.table = table
}

// SetOverlay sets the overlay drawn after the scene, nil disables it.
func (r *CommandRecorder) SetOverlay(overlay Overlay) {
	r.overlay = overlay
}

func (r *CommandRecorder) SetClearColor(c [4]float32) {
	r.clearColor = c
}

// SetFrame sets the frame counter reported to the overlay.
func (r *CommandRecorder) SetFrame(frame uint64) {
	r.frame = frame
}

// Record resets cmd and records the whole frame for imageIndex. On error the
// buffer is left half recorded and must not be submitted.
func (r *CommandRecorder) Record(cmd CommandEncoder, imageIndex uint32, items []DrawItem) error {
	if r.pipeline == nil {
		return Fatal(StageRecord, errors.AssertionFailedf("record without a pipeline"))
	}
	if r.table == nil {
		return Fatal(StageRecord, errors.AssertionFailedf("record without a descriptor table"))
	}

	target, err := r.targets.RenderTarget(imageIndex)
	if err != nil {
		return Fatal(StageRecord, err)
	}

	if err := r.record(cmd, imageIndex, target, items); err != nil {
		return Fatal(StageRecord, errors.Wrapf(err, "record image %d", imageIndex))
	}
	return nil
}

func (r *CommandRecorder) record(cmd CommandEncoder, imageIndex uint32, target RenderTarget, items []DrawItem) error {
	if err := cmd.Reset(); err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	if err := cmd.Begin(); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	toAttachment, err := LayoutTransition(target.Image, vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal)
	if err != nil {
		return err
	}
	cmd.PipelineBarrier(toAttachment)

	clears := []vk.ClearValue{
		vk.NewClearValue(r.clearColor[:]),
		vk.NewClearDepthStencil(1.0, 0),
	}
	cmd.BeginRenderPass(target.RenderPass, target.Framebuffer, target.Extent, clears)

	cmd.BindGraphicsPipeline(r.pipeline.VKPipeline)
	cmd.SetViewport(vk.Viewport{
		Width:    float32(target.Extent.Width),
		Height:   float32(target.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	cmd.SetScissor(vk.Rect2D{Extent: target.Extent})

	layout := r.pipeline.Layout.VKPipelineLayout
	cmd.BindDescriptorSets(layout, r.table.VKDescriptorSet())

	r.view.fill(&r.block, target.Extent)
	for i := range items {
		item := &items[i]
		r.block.fillItem(item)
		cmd.PushConstants(layout, PushConstantStages, 0, r.block.Bytes())
		cmd.BindVertexBuffers([]vk.Buffer{item.VertexBuffer}, []vk.DeviceSize{0})
		cmd.BindIndexBuffer(item.IndexBuffer, 0, item.IndexType)
		cmd.DrawIndexed(item.IndexCount, 0, 0)
	}

	if r.overlay != nil {
		frame := FrameContext{ImageIndex: imageIndex, Extent: target.Extent, Frame: r.frame}
		if err := r.overlay.RecordOverlay(cmd, frame); err != nil {
			return errors.Wrap(err, "record overlay")
		}
	}

	cmd.EndRenderPass()

	toPresent, err := LayoutTransition(target.Image, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc)
	if err != nil {
		return err
	}
	cmd.PipelineBarrier(toPresent)

	if err := cmd.End(); err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	return nil
}
