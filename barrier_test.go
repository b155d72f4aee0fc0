package vkg

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestLayoutTransition(t *testing.T) {
	img := newFakeImage()

	pre, err := LayoutTransition(img, vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal)
	if err != nil {
		t.Fatal(err)
	}
	if pre.SrcAccess != 0 || pre.DstAccess != vk.AccessFlags(vk.AccessColorAttachmentWriteBit) {
		t.Errorf("pre-render access %d -> %d", pre.SrcAccess, pre.DstAccess)
	}
	if pre.DstStage != vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) {
		t.Errorf("pre-render stage %d", pre.DstStage)
	}

	post, err := LayoutTransition(img, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc)
	if err != nil {
		t.Fatal(err)
	}
	if post.SrcAccess != vk.AccessFlags(vk.AccessColorAttachmentWriteBit) || post.DstAccess != 0 {
		t.Errorf("pre-present access %d -> %d", post.SrcAccess, post.DstAccess)
	}
	if post.DstStage != vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit) {
		t.Errorf("pre-present stage %d", post.DstStage)
	}

	b := post.vkImageMemoryBarrier()
	if b.Image != img || b.OldLayout != vk.ImageLayoutColorAttachmentOptimal || b.SubresourceRange.LayerCount != 1 {
		t.Errorf("barrier %+v", b)
	}
	if b.SrcQueueFamilyIndex != vk.QueueFamilyIgnored {
		t.Error("barrier transfers queue ownership")
	}

	if _, err := LayoutTransition(img, vk.ImageLayoutPresentSrc, vk.ImageLayoutGeneral); err == nil {
		t.Error("unknown transition accepted")
	}
}
