package vkg

import (
	"testing"

	"github.com/cockroachdb/errors"
)

// completeFrame drives one frame through the synchronizer the way the
// renderer does, with the submitter's fence signal inlined.
func completeFrame(t *testing.T, s *FrameSynchronizer, d *fakeSyncDevice) *FrameSlot {
	t.Helper()
	slot, err := s.AcquireSlot()
	if err != nil {
		t.Fatalf("AcquireSlot: %v", err)
	}
	if err := s.BeginRecording(); err != nil {
		t.Fatalf("BeginRecording: %v", err)
	}
	d.signal(slot.InFlight)
	if err := s.MarkSubmitted(); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	return slot
}

func TestFrameSynchronizerSlots(t *testing.T) {
	d := newFakeSyncDevice()
	a := &fakeAllocator{}
	s, err := NewFrameSynchronizer(d, a, 3)
	if err != nil {
		t.Fatal(err)
	}

	if s.FramesInFlight() != 3 {
		t.Fatalf("FramesInFlight() = %d", s.FramesInFlight())
	}
	seen := map[interface{}]bool{}
	for i := 0; i < 3; i++ {
		slot := s.Slot(i)
		if slot.Index != i {
			t.Errorf("slot %d has index %d", i, slot.Index)
		}
		if !d.fences[slot.InFlight] {
			t.Errorf("slot %d fence is not created signaled", i)
		}
		for _, h := range []interface{}{slot.ImageAcquired, slot.RenderComplete, slot.InFlight} {
			if seen[h] {
				t.Errorf("slot %d shares a primitive", i)
			}
			seen[h] = true
		}
	}
	if len(a.allocated) != 3 {
		t.Errorf("allocated %d command buffers", len(a.allocated))
	}
	if len(d.fences) != 3 || len(d.semaphores) != 6 {
		t.Errorf("device holds %d fences and %d semaphores, want 3 and 6", len(d.fences), len(d.semaphores))
	}
	if s.State() != FrameIdle {
		t.Errorf("initial state %s", s.State())
	}
}

func TestFrameSynchronizerCreateFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *fakeSyncDevice, a *fakeAllocator)
	}{
		{"semaphore", func(d *fakeSyncDevice, a *fakeAllocator) { d.failSemaphoreAt = 4 }},
		{"fence", func(d *fakeSyncDevice, a *fakeAllocator) { d.failFence = true }},
		{"command buffer", func(d *fakeSyncDevice, a *fakeAllocator) { a.failAt = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeSyncDevice()
			a := &fakeAllocator{}
			tt.setup(d, a)

			s, err := NewFrameSynchronizer(d, a, 2)
			if err == nil {
				t.Fatal("expected an error")
			}
			if s != nil {
				t.Error("returned a synchronizer on failure")
			}
			if !IsFatal(err) {
				t.Errorf("error is not fatal: %v", err)
			}
			if stage, _ := StageOf(err); stage != StageInit {
				t.Errorf("stage = %s", stage)
			}
			if n := d.live(); n != 0 {
				t.Errorf("%d primitives leaked", n)
			}
			if a.freed != len(a.allocated) {
				t.Errorf("freed %d of %d command buffers", a.freed, len(a.allocated))
			}
		})
	}
}

func TestFrameSynchronizerZeroSlots(t *testing.T) {
	if _, err := NewFrameSynchronizer(newFakeSyncDevice(), &fakeAllocator{}, 0); err == nil {
		t.Error("accepted zero frames in flight")
	}
}

func TestFrameSynchronizerIndexRotation(t *testing.T) {
	for inFlight := 1; inFlight <= 4; inFlight++ {
		d := newFakeSyncDevice()
		s, err := NewFrameSynchronizer(d, &fakeAllocator{}, inFlight)
		if err != nil {
			t.Fatal(err)
		}
		for n := 1; n <= 10; n++ {
			completeFrame(t, s, d)
			if s.Index() != n%inFlight {
				t.Errorf("inFlight=%d after %d frames index = %d", inFlight, n, s.Index())
			}
			if s.Frames() != uint64(n) {
				t.Errorf("Frames() = %d, want %d", s.Frames(), n)
			}
		}
	}
}

func TestFrameSynchronizerWaitsThenResets(t *testing.T) {
	d := newFakeSyncDevice()
	s, err := NewFrameSynchronizer(d, &fakeAllocator{}, 2)
	if err != nil {
		t.Fatal(err)
	}

	slot, err := s.AcquireSlot()
	if err != nil {
		t.Fatal(err)
	}
	if len(d.waits) != 1 || d.waits[0] != slot.InFlight {
		t.Fatalf("waits = %v", d.waits)
	}
	if len(d.resets) != 0 {
		t.Fatal("fence reset before an image was acquired")
	}
	if err := s.BeginRecording(); err != nil {
		t.Fatal(err)
	}
	if len(d.resets) != 1 || d.resets[0] != slot.InFlight {
		t.Errorf("resets = %v", d.resets)
	}
}

func TestFrameSynchronizerOutOfOrder(t *testing.T) {
	type step func(s *FrameSynchronizer) error
	acquire := func(s *FrameSynchronizer) error { _, err := s.AcquireSlot(); return err }
	begin := (*FrameSynchronizer).BeginRecording
	abandon := (*FrameSynchronizer).Abandon
	submitted := (*FrameSynchronizer).MarkSubmitted
	advance := (*FrameSynchronizer).Advance

	tests := []struct {
		name  string
		setup []step
		bad   step
	}{
		{"advance before submit", []step{acquire, begin}, advance},
		{"advance when idle", nil, advance},
		{"begin when idle", nil, begin},
		{"submit before begin", []step{acquire}, submitted},
		{"acquire twice", []step{acquire}, acquire},
		{"abandon after begin", []step{acquire, begin}, abandon},
		{"abandon when idle", nil, abandon},
		{"acquire while submitted", []step{acquire, begin, submitted}, acquire},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeSyncDevice()
			s, err := NewFrameSynchronizer(d, &fakeAllocator{}, 2)
			if err != nil {
				t.Fatal(err)
			}
			for _, st := range tt.setup {
				if err := st(s); err != nil {
					t.Fatalf("setup: %v", err)
				}
			}
			before, index := s.State(), s.Index()

			err = tt.bad(s)
			if !errors.HasAssertionFailure(err) {
				t.Fatalf("expected an assertion failure, got %v", err)
			}
			if s.State() != before || s.Index() != index {
				t.Errorf("rejected call changed state to %s/%d", s.State(), s.Index())
			}
		})
	}
}

func TestFrameSynchronizerAbandonKeepsFenceSignaled(t *testing.T) {
	d := newFakeSyncDevice()
	s, err := NewFrameSynchronizer(d, &fakeAllocator{}, 2)
	if err != nil {
		t.Fatal(err)
	}

	slot, err := s.AcquireSlot()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Abandon(); err != nil {
		t.Fatal(err)
	}
	if !d.fences[slot.InFlight] {
		t.Error("abandoned slot lost its signaled fence")
	}
	if s.Index() != 0 || s.State() != FrameIdle {
		t.Errorf("after abandon index=%d state=%s", s.Index(), s.State())
	}

	// the fake fails waits on unsignaled fences, so this proves no deadlock
	again, err := s.AcquireSlot()
	if err != nil {
		t.Fatalf("reacquire after abandon: %v", err)
	}
	if again != slot {
		t.Error("abandon moved to another slot")
	}
}

func TestFrameSynchronizerWaitFailure(t *testing.T) {
	d := newFakeSyncDevice()
	s, err := NewFrameSynchronizer(d, &fakeAllocator{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	d.waitErr = errInjected

	_, err = s.AcquireSlot()
	if !IsFatal(err) {
		t.Fatalf("wait failure is not fatal: %v", err)
	}
	if stage, ok := StageOf(err); !ok || stage != StageAcquire {
		t.Errorf("stage = %s", stage)
	}
	if !errors.Is(err, ErrDeviceLost) {
		t.Error("wait failure not marked as device loss")
	}
	if !errors.Is(err, errInjected) {
		t.Error("cause lost")
	}
}

func TestFrameSynchronizerDestroy(t *testing.T) {
	d := newFakeSyncDevice()
	a := &fakeAllocator{}
	s, err := NewFrameSynchronizer(d, a, 3)
	if err != nil {
		t.Fatal(err)
	}
	completeFrame(t, s, d)

	// leave a slot reset but never submitted
	if _, err := s.AcquireSlot(); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginRecording(); err != nil {
		t.Fatal(err)
	}

	if err := s.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if n := d.live(); n != 0 {
		t.Errorf("%d primitives leaked", n)
	}
	if a.freed != 3 {
		t.Errorf("freed %d command buffers", a.freed)
	}
}
