package vkg

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// ByteSourcer supplies raw bytes to be copied into a buffer.
type ByteSourcer interface {
	Bytes() []byte
}

// IndexSourcer is index data together with its element type.
type IndexSourcer interface {
	ByteSourcer
	IndexType() vk.IndexType
}

// VertexDescriptor describes how vertex data is laid out for a pipeline.
type VertexDescriptor interface {
	GetBindingDescription() vk.VertexInputBindingDescription
	GetAttributeDescriptions() []vk.VertexInputAttributeDescription
}

// VertexSourcer is vertex data which knows its own layout.
type VertexSourcer interface {
	ByteSourcer
	VertexDescriptor
}

// DescriptorBinding exposes a descriptor set that is bound once per frame.
type DescriptorBinding interface {
	VKDescriptorSet() vk.DescriptorSet
}

// SyncDevice is the subset of the logical device used to create and wait on
// per-frame synchronization primitives. *Device implements it.
type SyncDevice interface {
	VKCreateSemaphore() (vk.Semaphore, error)
	VKDestroySemaphore(s vk.Semaphore)
	VKCreateFence(signaled bool) (vk.Fence, error)
	VKDestroyFence(f vk.Fence)
	WaitForFence(f vk.Fence, timeout uint64) error
	ResetFence(f vk.Fence) error
}

// CommandAllocator hands out primary command buffers. *CommandPool implements it.
type CommandAllocator interface {
	AllocateEncoder() (CommandEncoder, error)
	FreeEncoder(cmd CommandEncoder)
}

// Submitter submits a recorded frame. The submission waits on wait at
// waitStage, signals signal once complete and signals fence for the host.
// *Queue implements it.
type Submitter interface {
	SubmitFrame(cmd CommandEncoder, wait vk.Semaphore, waitStage vk.PipelineStageFlags, signal vk.Semaphore, fence vk.Fence) error
}

// Presenter creates and presents swapchain image chains. *SurfacePresenter
// implements it on top of a vulkan surface.
type Presenter interface {
	CreateImageChain(extent vk.Extent2D) (*ImageChain, error)
	DestroyImageChain(chain *ImageChain)
	AcquireNextImage(chain *ImageChain, signal vk.Semaphore) (uint32, vk.Result)
	Present(chain *ImageChain, imageIndex uint32, wait vk.Semaphore) vk.Result
	WaitIdle() error
}

// SurfaceProvider reports the drawable size of the window backing a surface.
type SurfaceProvider interface {
	FramebufferSize() (width, height int)
	// WaitEvents blocks until the windowing system delivers an event.
	WaitEvents()
}

// WindowSurface is a window which can host a vulkan surface.
type WindowSurface interface {
	SurfaceProvider
	// ProcAddr returns vkGetInstanceProcAddr as loaded by the windowing library.
	ProcAddr() unsafe.Pointer
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}
