package vkg

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// CommandEncoder is the set of commands the frame recorder issues. Keeping it
// an interface lets the recording order be checked without a device.
type CommandEncoder interface {
	Reset() error
	Begin() error
	End() error
	PipelineBarrier(b ImageBarrier)
	BeginRenderPass(renderPass vk.RenderPass, framebuffer vk.Framebuffer, extent vk.Extent2D, clears []vk.ClearValue)
	EndRenderPass()
	BindGraphicsPipeline(pipeline vk.Pipeline)
	SetViewport(viewport vk.Viewport)
	SetScissor(scissor vk.Rect2D)
	BindDescriptorSets(layout vk.PipelineLayout, sets ...vk.DescriptorSet)
	PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte)
	BindVertexBuffers(buffers []vk.Buffer, offsets []vk.DeviceSize)
	BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType)
	DrawIndexed(indexCount, firstIndex uint32, vertexOffset int32)
	VK() vk.CommandBuffer
}

// CommandBuffers describe a sequence of commands that will be executed
// upon being sent to a device queue. Not every vulkan command is wrapped,
// VK() gives access to the native handle for the rest.
type CommandBuffer struct {
	VKCommandBuffer vk.CommandBuffer
}

var _ CommandEncoder = (*CommandBuffer)(nil)

// Reset this command buffer
func (c *CommandBuffer) Reset() error {
	return vk.Error(vk.ResetCommandBuffer(c.VKCommandBuffer, 0))
}

// VK is a utility function for accessing the native vulkan command buffer
func (c *CommandBuffer) VK() vk.CommandBuffer {
	return c.VKCommandBuffer
}

// Begin capturing work for this command buffer
func (c *CommandBuffer) Begin() error {
	var beginInfo = vk.CommandBufferBeginInfo{}
	beginInfo.SType = vk.StructureTypeCommandBufferBeginInfo
	beginInfo.Flags = 0
	return vk.Error(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

// BeginOneTime begins capturing work for a buffer which is submitted once and then discarded
func (c *CommandBuffer) BeginOneTime() error {
	var beginInfo = vk.CommandBufferBeginInfo{}
	beginInfo.SType = vk.StructureTypeCommandBufferBeginInfo
	beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	return vk.Error(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

// End describing work for this command buffer
func (c *CommandBuffer) End() error {
	return vk.Error(vk.EndCommandBuffer(c.VKCommandBuffer))
}

func (c *CommandBuffer) PipelineBarrier(b ImageBarrier) {
	vk.CmdPipelineBarrier(c.VKCommandBuffer, b.SrcStage, b.DstStage, 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{b.vkImageMemoryBarrier()})
}

func (c *CommandBuffer) BeginRenderPass(renderPass vk.RenderPass, framebuffer vk.Framebuffer, extent vk.Extent2D, clears []vk.ClearValue) {
	var beginInfo = vk.RenderPassBeginInfo{}
	beginInfo.SType = vk.StructureTypeRenderPassBeginInfo
	beginInfo.RenderPass = renderPass
	beginInfo.Framebuffer = framebuffer
	beginInfo.RenderArea = vk.Rect2D{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: extent}
	beginInfo.ClearValueCount = uint32(len(clears))
	beginInfo.PClearValues = clears
	vk.CmdBeginRenderPass(c.VKCommandBuffer, &beginInfo, vk.SubpassContentsInline)
}

func (c *CommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.VKCommandBuffer)
}

func (c *CommandBuffer) BindGraphicsPipeline(pipeline vk.Pipeline) {
	vk.CmdBindPipeline(c.VKCommandBuffer, vk.PipelineBindPointGraphics, pipeline)
}

func (c *CommandBuffer) SetViewport(viewport vk.Viewport) {
	vk.CmdSetViewport(c.VKCommandBuffer, 0, 1, []vk.Viewport{viewport})
}

func (c *CommandBuffer) SetScissor(scissor vk.Rect2D) {
	vk.CmdSetScissor(c.VKCommandBuffer, 0, 1, []vk.Rect2D{scissor})
}

func (c *CommandBuffer) BindDescriptorSets(layout vk.PipelineLayout, sets ...vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(c.VKCommandBuffer, vk.PipelineBindPointGraphics,
		layout, 0, uint32(len(sets)), sets, 0, nil)
}

func (c *CommandBuffer) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.VKCommandBuffer, layout, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CommandBuffer) BindVertexBuffers(buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(c.VKCommandBuffer, 0, uint32(len(buffers)), buffers, offsets)
}

func (c *CommandBuffer) BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(c.VKCommandBuffer, buffer, offset, indexType)
}

func (c *CommandBuffer) DrawIndexed(indexCount, firstIndex uint32, vertexOffset int32) {
	vk.CmdDrawIndexed(c.VKCommandBuffer, indexCount, 1, firstIndex, vertexOffset, 0)
}

// CmdCopyBufferToImage copies tightly packed pixel data from src into the
// color aspect of image.
func (c *CommandBuffer) CmdCopyBufferToImage(src vk.Buffer, image vk.Image, extent vk.Extent2D) {
	vk.CmdCopyBufferToImage(c.VKCommandBuffer, src, image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{},
		ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}})
}
