package vkg

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	vk "github.com/vulkan-go/vulkan"
)

// DefaultFramesInFlight is the number of frames the CPU may record ahead of the GPU.
const DefaultFramesInFlight = 2

// FrameState is the position of the frame loop within a single frame.
type FrameState int

const (
	FrameIdle FrameState = iota
	FrameAcquiring
	FrameRecording
	FrameSubmitted
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameAcquiring:
		return "acquiring"
	case FrameRecording:
		return "recording"
	case FrameSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("FrameState(%d)", int(s))
}

// FrameSlot holds everything a single frame in flight needs. The fence is
// created signaled so the first wait on every slot returns immediately.
type FrameSlot struct {
	Index          int
	ImageAcquired  vk.Semaphore
	RenderComplete vk.Semaphore
	InFlight       vk.Fence
	Commands       CommandEncoder
}

// FrameSynchronizer rotates through a fixed set of FrameSlots and enforces
// the order idle -> acquiring -> recording -> submitted -> idle.
//
// The fence of a slot is waited on in AcquireSlot but only reset in
// BeginRecording, once a swapchain image has actually been acquired. A frame
// abandoned because the swapchain went out of date therefore leaves its fence
// signaled and the next wait on it cannot deadlock.
type FrameSynchronizer struct {
	// FenceTimeout bounds the wait in AcquireSlot, in nanoseconds
	FenceTimeout uint64

	device   SyncDevice
	commands CommandAllocator
	slots    []*FrameSlot

	index     int
	state     FrameState
	frames    uint64
	fenceWait time.Duration
}

// NewFrameSynchronizer creates framesInFlight slots. If any primitive cannot
// be created, the ones already made are released and a fatal error is returned.
func NewFrameSynchronizer(device SyncDevice, commands CommandAllocator, framesInFlight int) (*FrameSynchronizer, error) {
	if framesInFlight < 1 {
		return nil, Fatal(StageInit, errors.Newf("frames in flight must be at least 1, got %d", framesInFlight))
	}

	s := &FrameSynchronizer{
		FenceTimeout: vk.MaxUint64,
		device:       device,
		commands:     commands,
		slots:        make([]*FrameSlot, 0, framesInFlight),
	}

	for i := 0; i < framesInFlight; i++ {
		slot, err := s.createSlot(i)
		if err != nil {
			s.releaseSlots()
			return nil, Fatal(StageInit, errors.Wrapf(err, "create frame slot %d", i))
		}
		s.slots = append(s.slots, slot)
	}

	Logger().Debug("frame synchronizer created", "framesInFlight", framesInFlight)

	return s, nil
}

func (s *FrameSynchronizer) createSlot(index int) (*FrameSlot, error) {
	slot := &FrameSlot{Index: index}
	var err error

	slot.ImageAcquired, err = s.device.VKCreateSemaphore()
	if err != nil {
		return nil, err
	}

	slot.RenderComplete, err = s.device.VKCreateSemaphore()
	if err != nil {
		s.device.VKDestroySemaphore(slot.ImageAcquired)
		return nil, err
	}

	slot.InFlight, err = s.device.VKCreateFence(true)
	if err != nil {
		s.device.VKDestroySemaphore(slot.ImageAcquired)
		s.device.VKDestroySemaphore(slot.RenderComplete)
		return nil, err
	}

	slot.Commands, err = s.commands.AllocateEncoder()
	if err != nil {
		s.device.VKDestroySemaphore(slot.ImageAcquired)
		s.device.VKDestroySemaphore(slot.RenderComplete)
		s.device.VKDestroyFence(slot.InFlight)
		return nil, err
	}

	return slot, nil
}

func (s *FrameSynchronizer) releaseSlots() {
	for _, slot := range s.slots {
		s.device.VKDestroySemaphore(slot.ImageAcquired)
		s.device.VKDestroySemaphore(slot.RenderComplete)
		s.device.VKDestroyFence(slot.InFlight)
		s.commands.FreeEncoder(slot.Commands)
	}
	s.slots = nil
}

// AcquireSlot blocks until the GPU has finished with the current slot and
// returns it. A failed wait is fatal and treated as device loss.
func (s *FrameSynchronizer) AcquireSlot() (*FrameSlot, error) {
	if s.state != FrameIdle {
		return nil, errors.AssertionFailedf("acquire slot while %s", s.state)
	}

	slot := s.slots[s.index]

	start := hrtime.Now()
	err := s.device.WaitForFence(slot.InFlight, s.FenceTimeout)
	s.fenceWait = hrtime.Since(start)
	if err != nil {
		err = errors.Wrapf(err, "wait for frame slot %d", slot.Index)
		return nil, Fatal(StageAcquire, errors.Mark(err, ErrDeviceLost))
	}

	s.state = FrameAcquiring
	return slot, nil
}

// BeginRecording resets the current slot's fence. It must only be called once
// a swapchain image has been acquired for the frame.
func (s *FrameSynchronizer) BeginRecording() error {
	if s.state != FrameAcquiring {
		return errors.AssertionFailedf("begin recording while %s", s.state)
	}
	slot := s.slots[s.index]
	if err := s.device.ResetFence(slot.InFlight); err != nil {
		return Fatal(StageAcquire, errors.Wrapf(err, "reset fence of frame slot %d", slot.Index))
	}
	s.state = FrameRecording
	return nil
}

// Abandon drops the current frame before anything was recorded. The slot keeps
// its signaled fence and the slot index does not move.
func (s *FrameSynchronizer) Abandon() error {
	if s.state != FrameAcquiring {
		return errors.AssertionFailedf("abandon frame while %s", s.state)
	}
	s.state = FrameIdle
	return nil
}

// MarkSubmitted records that the current slot's command buffer was submitted.
func (s *FrameSynchronizer) MarkSubmitted() error {
	if s.state != FrameRecording {
		return errors.AssertionFailedf("mark submitted while %s", s.state)
	}
	s.state = FrameSubmitted
	return nil
}

// Advance moves to the next slot. It is rejected unless the current frame was submitted.
func (s *FrameSynchronizer) Advance() error {
	if s.state != FrameSubmitted {
		return errors.AssertionFailedf("advance frame while %s", s.state)
	}
	s.index = (s.index + 1) % len(s.slots)
	s.frames++
	s.state = FrameIdle
	return nil
}

// Index is the slot the next frame will use.
func (s *FrameSynchronizer) Index() int {
	return s.index
}

func (s *FrameSynchronizer) State() FrameState {
	return s.state
}

// Frames is the number of frames that have been submitted and advanced past.
func (s *FrameSynchronizer) Frames() uint64 {
	return s.frames
}

func (s *FrameSynchronizer) FramesInFlight() int {
	return len(s.slots)
}

func (s *FrameSynchronizer) Slot(i int) *FrameSlot {
	return s.slots[i]
}

// LastFenceWait is how long the most recent AcquireSlot blocked on its fence.
func (s *FrameSynchronizer) LastFenceWait() time.Duration {
	return s.fenceWait
}

// Destroy waits for every submitted slot and releases all slots. A slot whose
// fence was reset but never submitted is not waited on.
func (s *FrameSynchronizer) Destroy() error {
	var err error
	for _, slot := range s.slots {
		if slot.Index == s.index && s.state == FrameRecording {
			continue
		}
		if werr := s.device.WaitForFence(slot.InFlight, s.FenceTimeout); werr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(werr, "wait for frame slot %d", slot.Index))
		}
	}
	s.releaseSlots()
	s.state = FrameIdle
	if err != nil {
		return Fatal(StageShutdown, err)
	}
	return nil
}
