package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ImageBarrier is a single image layout transition together with the
// execution and memory dependency guarding it.
type ImageBarrier struct {
	Image     vk.Image
	Aspect    vk.ImageAspectFlags
	OldLayout vk.ImageLayout
	NewLayout vk.ImageLayout
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
}

type layoutPair struct {
	old, new vk.ImageLayout
}

type transitionMasks struct {
	srcStage  vk.PipelineStageFlagBits
	dstStage  vk.PipelineStageFlagBits
	srcAccess vk.AccessFlagBits
	dstAccess vk.AccessFlagBits
}

var knownTransitions = map[layoutPair]transitionMasks{
	{vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal}: {
		srcStage:  vk.PipelineStageTopOfPipeBit,
		dstStage:  vk.PipelineStageTransferBit,
		dstAccess: vk.AccessTransferWriteBit,
	},
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal}: {
		srcStage:  vk.PipelineStageTransferBit,
		dstStage:  vk.PipelineStageFragmentShaderBit,
		srcAccess: vk.AccessTransferWriteBit,
		dstAccess: vk.AccessShaderReadBit,
	},
	// Before rendering: the previous contents of a swapchain image are discarded.
	{vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal}: {
		srcStage:  vk.PipelineStageColorAttachmentOutputBit,
		dstStage:  vk.PipelineStageColorAttachmentOutputBit,
		dstAccess: vk.AccessColorAttachmentWriteBit,
	},
	// Before presenting.
	{vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc}: {
		srcStage:  vk.PipelineStageColorAttachmentOutputBit,
		dstStage:  vk.PipelineStageBottomOfPipeBit,
		srcAccess: vk.AccessColorAttachmentWriteBit,
	},
}

// LayoutTransition returns the barrier for a known color image layout
// transition.
func LayoutTransition(image vk.Image, oldLayout, newLayout vk.ImageLayout) (ImageBarrier, error) {
	m, ok := knownTransitions[layoutPair{oldLayout, newLayout}]
	if !ok {
		return ImageBarrier{}, errors.Newf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}
	return ImageBarrier{
		Image:     image,
		Aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
		OldLayout: oldLayout,
		NewLayout: newLayout,
		SrcStage:  vk.PipelineStageFlags(m.srcStage),
		DstStage:  vk.PipelineStageFlags(m.dstStage),
		SrcAccess: vk.AccessFlags(m.srcAccess),
		DstAccess: vk.AccessFlags(m.dstAccess),
	}, nil
}

func (b ImageBarrier) vkImageMemoryBarrier() vk.ImageMemoryBarrier {
	var barrier = vk.ImageMemoryBarrier{}
	barrier.SType = vk.StructureTypeImageMemoryBarrier
	barrier.OldLayout = b.OldLayout
	barrier.NewLayout = b.NewLayout
	barrier.SrcQueueFamilyIndex = vk.QueueFamilyIgnored
	barrier.DstQueueFamilyIndex = vk.QueueFamilyIgnored
	barrier.Image = b.Image
	barrier.SubresourceRange.AspectMask = b.Aspect
	barrier.SubresourceRange.BaseMipLevel = 0
	barrier.SubresourceRange.LevelCount = 1
	barrier.SubresourceRange.BaseArrayLayer = 0
	barrier.SubresourceRange.LayerCount = 1
	barrier.SrcAccessMask = b.SrcAccess
	barrier.DstAccessMask = b.DstAccess
	return barrier
}
