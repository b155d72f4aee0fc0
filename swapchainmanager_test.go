package vkg

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

func newTestSwapchain(t *testing.T, images int, sizes ...[2]int) (*SwapchainManager, *fakePresenter, *fakeSurface) {
	t.Helper()
	p := newFakePresenter(images)
	s := &fakeSurface{sizes: sizes}
	m, err := NewSwapchainManager(p, s)
	if err != nil {
		t.Fatal(err)
	}
	return m, p, s
}

func TestNewSwapchainManagerWaitsForArea(t *testing.T) {
	m, p, s := newTestSwapchain(t, 3, [2]int{0, 0}, [2]int{0, 480}, [2]int{640, 480})

	if s.waits != 2 {
		t.Errorf("waited %d times", s.waits)
	}
	if len(p.created) != 1 {
		t.Fatalf("created %d chains", len(p.created))
	}
	if got := m.Extent(); got.Width != 640 || got.Height != 480 {
		t.Errorf("extent %dx%d", got.Width, got.Height)
	}
	if m.Chain().Generation != 1 {
		t.Errorf("generation %d", m.Chain().Generation)
	}
	if m.NeedsRebuild() {
		t.Error("fresh chain needs rebuild")
	}
}

func TestSwapchainAcquireResults(t *testing.T) {
	tests := []struct {
		name    string
		res     vk.Result
		status  AcquireStatus
		rebuild bool
		fatal   bool
	}{
		{"success", vk.Success, AcquireOK, false, false},
		{"suboptimal", vk.Suboptimal, AcquireSuboptimal, true, false},
		{"out of date", vk.ErrorOutOfDate, AcquireInvalidated, true, false},
		{"device lost", vk.ErrorDeviceLost, AcquireInvalidated, false, true},
		{"surface lost", vk.ErrorSurfaceLost, AcquireInvalidated, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, p, _ := newTestSwapchain(t, 2, [2]int{800, 600})
			p.acquire = []vk.Result{tt.res}

			_, status, err := m.AcquireNextImage(newFakeSemaphore())
			if tt.fatal {
				if !IsFatal(err) {
					t.Fatalf("expected a fatal error, got %v", err)
				}
				if stage, _ := StageOf(err); stage != StageAcquire {
					t.Errorf("stage = %s", stage)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if status != tt.status {
				t.Errorf("status = %s, want %s", status, tt.status)
			}
			if m.NeedsRebuild() != tt.rebuild {
				t.Errorf("NeedsRebuild() = %v", m.NeedsRebuild())
			}
		})
	}
}

func TestSwapchainAcquireDeviceLost(t *testing.T) {
	m, p, _ := newTestSwapchain(t, 2, [2]int{800, 600})
	p.acquire = []vk.Result{vk.ErrorDeviceLost}

	_, _, err := m.AcquireNextImage(newFakeSemaphore())
	if !errors.Is(err, ErrDeviceLost) {
		t.Errorf("device loss not marked: %v", err)
	}
}

func TestSwapchainPresentResults(t *testing.T) {
	tests := []struct {
		name    string
		res     vk.Result
		rebuild bool
		fatal   bool
	}{
		{"success", vk.Success, false, false},
		{"suboptimal", vk.Suboptimal, true, false},
		{"out of date", vk.ErrorOutOfDate, true, false},
		{"surface lost", vk.ErrorSurfaceLost, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, p, _ := newTestSwapchain(t, 2, [2]int{800, 600})
			p.present = []vk.Result{tt.res}
			wait := newFakeSemaphore()

			err := m.Present(1, wait)
			if tt.fatal {
				if !IsFatal(err) {
					t.Fatalf("expected a fatal error, got %v", err)
				}
				if stage, _ := StageOf(err); stage != StagePresent {
					t.Errorf("stage = %s", stage)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if m.NeedsRebuild() != tt.rebuild {
				t.Errorf("NeedsRebuild() = %v", m.NeedsRebuild())
			}
			if len(p.presents) != 1 || p.presents[0] != (presentRecord{1, wait}) {
				t.Errorf("presents = %v", p.presents)
			}
		})
	}
}

func TestSwapchainRebuildWaitsForArea(t *testing.T) {
	m, p, s := newTestSwapchain(t, 3, [2]int{800, 600})
	s.resizeTo([2]int{0, 0}, [2]int{0, 0}, [2]int{1024, 768})
	m.Invalidate()

	if err := m.Rebuild(); err != nil {
		t.Fatal(err)
	}

	if s.waits != 2 {
		t.Errorf("waited %d times", s.waits)
	}
	want := []string{"create 800x600", "waitIdle", "create 1024x768"}
	if len(p.ops) != len(want) {
		t.Fatalf("ops = %v", p.ops)
	}
	for i := range want {
		if p.ops[i] != want[i] {
			t.Errorf("op %d = %q, want %q", i, p.ops[i], want[i])
		}
	}
	for _, e := range p.created {
		if e.Width == 0 || e.Height == 0 {
			t.Errorf("chain created with zero area %dx%d", e.Width, e.Height)
		}
	}
	if p.live != 1 {
		t.Errorf("%d chains alive", p.live)
	}
	if m.NeedsRebuild() {
		t.Error("still needs rebuild")
	}
	if m.Chain().Generation != 2 {
		t.Errorf("generation %d", m.Chain().Generation)
	}
}

func TestSwapchainRebuildIsRepeatable(t *testing.T) {
	m, p, _ := newTestSwapchain(t, 3, [2]int{800, 600})

	if err := m.Rebuild(); err != nil {
		t.Fatal(err)
	}
	count, format, extent := m.ImageCount(), m.Format(), m.Extent()

	if err := m.Rebuild(); err != nil {
		t.Fatal(err)
	}
	if m.ImageCount() != count || m.Format() != format || m.Extent() != extent {
		t.Errorf("second rebuild changed the chain: %d %d %v", m.ImageCount(), m.Format(), m.Extent())
	}
	if p.live != 1 || p.destroyed != 2 {
		t.Errorf("live=%d destroyed=%d", p.live, p.destroyed)
	}
	if m.Chain().Generation != 3 {
		t.Errorf("generation %d", m.Chain().Generation)
	}
}

func TestSwapchainRenderTarget(t *testing.T) {
	m, _, _ := newTestSwapchain(t, 2, [2]int{320, 200})

	target, err := m.RenderTarget(1)
	if err != nil {
		t.Fatal(err)
	}
	if target.Image != m.Chain().Images[1].Image || target.Framebuffer != m.Chain().Images[1].Framebuffer {
		t.Error("target does not match image 1")
	}
	if target.Extent.Width != 320 || target.Extent.Height != 200 {
		t.Errorf("extent %v", target.Extent)
	}

	if _, err := m.RenderTarget(2); !errors.HasAssertionFailure(err) {
		t.Errorf("out of range index: %v", err)
	}
}

func TestSwapchainDestroy(t *testing.T) {
	m, p, _ := newTestSwapchain(t, 2, [2]int{800, 600})
	if err := m.Destroy(); err != nil {
		t.Fatal(err)
	}
	if p.live != 0 || p.waitIdle != 1 {
		t.Errorf("live=%d waitIdle=%d", p.live, p.waitIdle)
	}
}
