package vkg

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

type Queue struct {
	Device      *Device
	QueueFamily *QueueFamily
	VKQueue     vk.Queue
}

var _ Submitter = (*Queue)(nil)

func (q *Queue) WaitIdle() error {
	return vk.Error(vk.QueueWaitIdle(q.VKQueue))
}

// SubmitWithFence submits buffers without any semaphores and signals fence on completion
func (q *Queue) SubmitWithFence(fence *Fence, buffers ...*CommandBuffer) error {
	b := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		b[i] = buffers[i].VKCommandBuffer
	}

	var submitInfo = vk.SubmitInfo{}
	submitInfo.SType = vk.StructureTypeSubmitInfo
	submitInfo.CommandBufferCount = uint32(len(b))
	submitInfo.PCommandBuffers = b

	return vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, fence.VKFence))
}

// UploadTimeout bounds the wait of SubmitAndWait.
const UploadTimeout = 10 * time.Second

// SubmitAndWait submits a one time command buffer and blocks until it has executed.
func (q *Queue) SubmitAndWait(cmd *CommandBuffer) error {
	f, err := q.Device.CreateFence()
	if err != nil {
		return err
	}
	defer f.Destroy()

	if err := q.SubmitWithFence(f, cmd); err != nil {
		return errors.Wrap(err, "submit")
	}
	return errors.Wrap(q.Device.WaitForFences(true, UploadTimeout, f), "wait for upload")
}

// SubmitFrame submits a single frame command buffer. Execution of waitStage
// is held until wait is signaled, signal is raised when the work completes and
// fence lets the host observe the same.
func (q *Queue) SubmitFrame(cmd CommandEncoder, wait vk.Semaphore, waitStage vk.PipelineStageFlags, signal vk.Semaphore, fence vk.Fence) error {
	submitInfo := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{wait},
		PWaitDstStageMask:    []vk.PipelineStageFlags{waitStage},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.VK()},
	}}
	return resultError(vk.QueueSubmit(q.VKQueue, 1, submitInfo, fence))
}

func (q *Queue) String() string {
	return fmt.Sprintf("{Device: %s QueueFamily: %s}", q.Device.String(), q.QueueFamily.String())
}
