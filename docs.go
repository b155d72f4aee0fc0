/*
Package vkg is the frame loop of a small real-time Vulkan renderer: it keeps a fixed
number of frames in flight, rebuilds the swapchain when the window changes, records
one command buffer per frame and draws every object through a single bindless
texture table.

Vulkan leaves synchronization, memory placement and presentation to the application.
This package makes those decisions once, for a forward renderer drawing indexed meshes,
and exposes the native handles (every field prefixed with 'VK') so callers are never
limited by what the wrappers provide.

Native Vulkan terms
	Instance	the vulkan runtime instance
	PhysicalDevice	the physical hardware device
	Device		the logical device most calls are made against
	Queue		a queue which command buffers are submitted to
	Swapchain	the images presented to the window surface
	Semaphore	a GPU to GPU signal, ordering acquire, render and present
	Fence		a GPU to CPU signal, telling the CPU a frame slot may be reused
	Pipeline	the compiled state used to draw
	DescriptorSet	a table of resources shaders read from

A frame

Each frame moves a FrameSlot through idle, acquiring, recording and submitted:

	1. FrameSynchronizer.AcquireSlot waits on the slot's fence
	2. SwapchainManager.AcquireNextImage signals the slot's ImageAcquired semaphore
	3. FrameSynchronizer.BeginRecording resets the fence
	4. CommandRecorder.Record records barriers, the render pass and every DrawItem
	5. the submit waits on ImageAcquired, signals RenderComplete and the fence
	6. SwapchainManager.Present waits on RenderComplete
	7. FrameSynchronizer.Advance moves to the next slot

Renderer.DrawFrame runs these steps. An out of date swapchain abandons the frame before
the fence is reset and the swapchain is rebuilt once the window has a drawable area
again.

Errors

Every error the frame loop returns is fatal. Fatal errors carry ErrFatal and the
Stage they came from, see IsFatal and StageOf. Calling the synchronizer out of order
is a programming error and reported as an assertion failure.

Other parts

GraphicsApp:
	creates the instance, device, swapchain, texture table and renderer for a window
ResourceManager:
	sub-allocates device memory and stages buffers and images
DescriptorTable:
	the bindless texture array addressed by Material.TextureIndex
PipelineBuilder:
	builds graphics pipelines from a GraphicsPipelineConfig through a PipelineCache
*/
package vkg
