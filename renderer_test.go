package vkg

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

func mustRig(t *testing.T, framesInFlight, images int, sizes ...[2]int) *testRig {
	t.Helper()
	r, err := newTestRig(framesInFlight, images, sizes...)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func drawFrames(t *testing.T, r *testRig, n int, items []DrawItem) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := r.renderer.DrawFrame(items); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
}

func TestDrawFrameSubmitsAndPresents(t *testing.T) {
	r := mustRig(t, 2, 3)
	drawFrames(t, r, 1, testItems(2))

	slot := r.sync.Slot(0)
	if len(r.submitter.submissions) != 1 {
		t.Fatalf("%d submissions", len(r.submitter.submissions))
	}
	s := r.submitter.submissions[0]
	if s.wait != slot.ImageAcquired || s.signal != slot.RenderComplete || s.fence != slot.InFlight {
		t.Error("submission does not use the slot's primitives")
	}
	if s.stage != vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) {
		t.Errorf("wait stage %d", s.stage)
	}
	if s.cmd != slot.Commands {
		t.Error("submitted another slot's command buffer")
	}
	if len(r.presenter.acquires) != 1 || r.presenter.acquires[0] != slot.ImageAcquired {
		t.Error("acquire did not signal the slot's image semaphore")
	}
	if len(r.presenter.presents) != 1 || r.presenter.presents[0].wait != slot.RenderComplete {
		t.Error("present does not wait on the slot's render semaphore")
	}
	if r.sync.Index() != 1 || r.sync.State() != FrameIdle {
		t.Errorf("after one frame index=%d state=%s", r.sync.Index(), r.sync.State())
	}
	if r.renderer.Stats().Frames() != 1 {
		t.Errorf("stats counted %d frames", r.renderer.Stats().Frames())
	}
}

func TestDrawFrameRotatesSlots(t *testing.T) {
	const inFlight, frames = 3, 7
	r := mustRig(t, inFlight, 2)
	drawFrames(t, r, frames, testItems(1))

	if r.sync.Index() != frames%inFlight {
		t.Errorf("index = %d", r.sync.Index())
	}
	for i, s := range r.submitter.submissions {
		if s.fence != r.sync.Slot(i%inFlight).InFlight {
			t.Errorf("frame %d used the wrong slot", i)
		}
	}
	for i, p := range r.presenter.presents {
		if p.imageIndex != uint32(i%2) {
			t.Errorf("frame %d presented image %d", i, p.imageIndex)
		}
	}
}

func TestDrawFrameResizeThroughZeroArea(t *testing.T) {
	r := mustRig(t, 2, 3, [2]int{800, 600})
	drawFrames(t, r, 1, testItems(1))

	r.surface.resizeTo([2]int{0, 0}, [2]int{1024, 768})
	r.renderer.Invalidate()
	drawFrames(t, r, 1, testItems(1))

	if r.surface.waits == 0 {
		t.Error("loop did not wait while the surface had no area")
	}
	subs := r.submitter.submissions
	if len(subs) != 2 {
		t.Fatalf("%d submissions", len(subs))
	}
	for i, s := range subs {
		if s.extent.Width == 0 || s.extent.Height == 0 {
			t.Errorf("submission %d targets zero area", i)
		}
	}
	if subs[1].extent != (vk.Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("resumed at %v", subs[1].extent)
	}
	if len(r.presenter.created) != 2 {
		t.Errorf("created %d chains", len(r.presenter.created))
	}
}

func TestDrawFrameOutOfDateSkipsFrame(t *testing.T) {
	r := mustRig(t, 2, 3, [2]int{800, 600})
	r.surface.resizeTo([2]int{0, 0}, [2]int{1024, 768})
	r.presenter.acquire = []vk.Result{vk.ErrorOutOfDate}

	if err := r.renderer.DrawFrame(testItems(1)); err != nil {
		t.Fatal(err)
	}
	if len(r.submitter.submissions) != 0 || len(r.presenter.presents) != 0 {
		t.Fatal("out of date frame was submitted")
	}
	if len(r.device.resets) != 0 {
		t.Error("skipped frame reset its fence")
	}
	if r.sync.Index() != 0 || r.sync.State() != FrameIdle {
		t.Errorf("index=%d state=%s", r.sync.Index(), r.sync.State())
	}
	if r.swapchain.Extent() != (vk.Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("extent after rebuild %v", r.swapchain.Extent())
	}

	drawFrames(t, r, 1, testItems(1))
	if len(r.submitter.submissions) != 1 {
		t.Fatalf("%d submissions", len(r.submitter.submissions))
	}
	if r.submitter.submissions[0].fence != r.sync.Slot(0).InFlight {
		t.Error("next frame did not reuse the skipped slot")
	}
}

func TestDrawFrameSuboptimalPresentsThenRebuilds(t *testing.T) {
	r := mustRig(t, 2, 3)
	r.presenter.acquire = []vk.Result{vk.Suboptimal}

	drawFrames(t, r, 1, testItems(1))
	if len(r.presenter.presents) != 1 {
		t.Fatal("suboptimal frame was not presented")
	}
	if !r.swapchain.NeedsRebuild() {
		t.Fatal("no rebuild scheduled")
	}

	drawFrames(t, r, 1, testItems(1))
	want := []string{
		"create 800x600", "acquire", "present",
		"waitIdle", "create 800x600", "acquire", "present",
	}
	if len(r.presenter.ops) != len(want) {
		t.Fatalf("ops = %v", r.presenter.ops)
	}
	for i := range want {
		if r.presenter.ops[i] != want[i] {
			t.Errorf("op %d = %q, want %q", i, r.presenter.ops[i], want[i])
		}
	}
}

func TestDrawFramePresentOutOfDate(t *testing.T) {
	r := mustRig(t, 2, 3)
	r.presenter.present = []vk.Result{vk.ErrorOutOfDate}

	drawFrames(t, r, 1, testItems(1))
	if r.sync.Index() != 1 {
		t.Error("frame presented out of date did not advance")
	}
	drawFrames(t, r, 1, testItems(1))
	if len(r.presenter.created) != 2 {
		t.Errorf("created %d chains", len(r.presenter.created))
	}
}

func TestDrawFrameFatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *testRig)
		stage Stage
	}{
		{"submit", func(r *testRig) { r.submitter.err = errInjected }, StageSubmit},
		{"fence wait", func(r *testRig) { r.device.waitErr = errInjected }, StageAcquire},
		{"acquire", func(r *testRig) { r.presenter.acquire = []vk.Result{vk.ErrorDeviceLost} }, StageAcquire},
		{"present", func(r *testRig) { r.presenter.present = []vk.Result{vk.ErrorSurfaceLost} }, StagePresent},
		{"record", func(r *testRig) { r.alloc.allocated[0].endErr = errInjected }, StageRecord},
		{"no pipeline", func(r *testRig) { r.recorder.SetPipeline(nil) }, StageRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustRig(t, 2, 3)
			tt.setup(r)

			err := r.renderer.DrawFrame(testItems(1))
			if !IsFatal(err) {
				t.Fatalf("expected a fatal error, got %v", err)
			}
			if stage, ok := StageOf(err); !ok || stage != tt.stage {
				t.Errorf("stage = %s, want %s", stage, tt.stage)
			}
		})
	}
}

func TestDrawFrameAssertionsAreFatal(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, r *testRig)
		stage Stage
	}{
		{"record after begin", func(t *testing.T, r *testRig) { r.recorder.SetTable(nil) }, StageRecord},
		{"slot already acquired", func(t *testing.T, r *testRig) {
			if _, err := r.sync.AcquireSlot(); err != nil {
				t.Fatal(err)
			}
		}, StageAcquire},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustRig(t, 2, 3)
			tt.setup(t, r)

			err := r.renderer.DrawFrame(testItems(1))
			if !errors.HasAssertionFailure(err) {
				t.Fatalf("expected an assertion failure, got %v", err)
			}
			if !IsFatal(err) {
				t.Error("assertion failure is not fatal")
			}
			if stage, ok := StageOf(err); !ok || stage != tt.stage {
				t.Errorf("stage = %s, want %s", stage, tt.stage)
			}
			if len(r.submitter.submissions) != 0 {
				t.Error("frame submitted after a failed assertion")
			}
		})
	}
}

func TestSetWireframe(t *testing.T) {
	r := mustRig(t, 2, 3)
	first := r.renderer.Pipeline()

	if err := r.renderer.SetWireframe(true); err != nil {
		t.Fatal(err)
	}
	if r.renderer.Wireframe() || len(r.pipelines.built) != 1 {
		t.Fatal("pipeline replaced before the next frame")
	}

	drawFrames(t, r, 1, testItems(1))

	if !r.renderer.Wireframe() {
		t.Fatal("wireframe not applied")
	}
	if r.idler.calls != 1 {
		t.Errorf("device waited idle %d times", r.idler.calls)
	}
	if len(r.pipelines.built) != 2 || r.pipelines.built[1].PolygonMode != vk.PolygonModeLine {
		t.Errorf("built %d pipelines", len(r.pipelines.built))
	}
	if len(r.pipelines.released) != 1 || r.pipelines.released[0] != first {
		t.Error("old pipeline not released")
	}
	if r.recorder.pipeline != r.renderer.Pipeline() {
		t.Error("recorder still uses the old pipeline")
	}
	if r.pipelines.built[0].PolygonMode != vk.PolygonModeFill {
		t.Error("building the wireframe pipeline changed the fill config")
	}

	drawFrames(t, r, 1, testItems(1))
	if len(r.pipelines.built) != 2 {
		t.Error("unchanged setting rebuilt the pipeline")
	}
}

func TestSetWireframeUnsupported(t *testing.T) {
	r := mustRig(t, 2, 3)
	r.pipelines.limits.FillModeNonSolid = false

	err := r.renderer.SetWireframe(true)
	if err == nil {
		t.Fatal("expected an error")
	}
	if IsFatal(err) {
		t.Error("unsupported wireframe must not stop the renderer")
	}
	if len(errors.GetAllHints(err)) == 0 {
		t.Error("no hint")
	}
	drawFrames(t, r, 1, nil)
	if r.renderer.Wireframe() {
		t.Error("wireframe applied anyway")
	}
	if err := r.renderer.SetWireframe(false); err != nil {
		t.Errorf("disabling: %v", err)
	}
}

func TestNewRendererRejects(t *testing.T) {
	r := mustRig(t, 2, 3)
	parts := RendererParts{
		Device:     r.idler,
		Sync:       r.sync,
		Swapchain:  r.swapchain,
		Recorder:   r.recorder,
		Submitter:  r.submitter,
		Pipelines:  r.pipelines,
		Table:      r.table,
		BaseConfig: testPipelineConfig(),
	}

	cfg := DefaultRendererConfig()
	cfg.FramesInFlight = 0
	if _, err := NewRenderer(cfg, parts); !IsFatal(err) {
		t.Errorf("invalid config: %v", err)
	}

	missing := parts
	missing.Table = nil
	if _, err := NewRenderer(DefaultRendererConfig(), missing); !errors.HasAssertionFailure(err) {
		t.Errorf("missing table: %v", err)
	}

	r.pipelines.err = errInjected
	if _, err := NewRenderer(DefaultRendererConfig(), parts); !IsFatal(err) {
		t.Errorf("pipeline failure: %v", err)
	}
}

func TestRendererShutdown(t *testing.T) {
	r := mustRig(t, 2, 3)
	p := r.renderer.Pipeline()
	drawFrames(t, r, 2, testItems(1))

	if err := r.renderer.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if len(r.pipelines.released) != 1 || r.pipelines.released[0] != p {
		t.Error("pipeline not released")
	}
	if r.renderer.Pipeline() != nil || r.recorder.pipeline != nil {
		t.Error("pipeline still referenced")
	}
	if err := r.sync.Destroy(); err != nil {
		t.Fatal(err)
	}
	if err := r.swapchain.Destroy(); err != nil {
		t.Fatal(err)
	}
	if r.device.live() != 0 || r.presenter.live != 0 {
		t.Error("resources leaked")
	}
}
