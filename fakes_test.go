package vkg

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Handles only need to be distinct and non-null. They point into a package
// level arena so the addresses stay unique and alive for the whole test run.
var (
	handleArena = make([]byte, 1<<16)
	handleNext  int
)

func newFakeHandle() unsafe.Pointer {
	if handleNext == len(handleArena) {
		panic("fake handle arena exhausted")
	}
	p := unsafe.Pointer(&handleArena[handleNext])
	handleNext++
	return p
}

func newFakeSemaphore() vk.Semaphore         { return vk.Semaphore(newFakeHandle()) }
func newFakeFence() vk.Fence                 { return vk.Fence(newFakeHandle()) }
func newFakeImage() vk.Image                 { return vk.Image(newFakeHandle()) }
func newFakeFramebuffer() vk.Framebuffer     { return vk.Framebuffer(newFakeHandle()) }
func newFakeBuffer() vk.Buffer               { return vk.Buffer(newFakeHandle()) }
func newFakeDescriptorSet() vk.DescriptorSet { return vk.DescriptorSet(newFakeHandle()) }
func newFakeImageView() vk.ImageView         { return vk.ImageView(newFakeHandle()) }

var errInjected = errors.New("injected failure")

type fakeSyncDevice struct {
	semaphores map[vk.Semaphore]bool
	fences     map[vk.Fence]bool // value is the signaled state

	waits  []vk.Fence
	resets []vk.Fence

	// failures
	failSemaphoreAt int // 1 based, 0 never
	failFence       bool
	waitErr         error

	semaphoreCalls int
}

var _ SyncDevice = (*fakeSyncDevice)(nil)

func newFakeSyncDevice() *fakeSyncDevice {
	return &fakeSyncDevice{semaphores: map[vk.Semaphore]bool{}, fences: map[vk.Fence]bool{}}
}

func (d *fakeSyncDevice) VKCreateSemaphore() (vk.Semaphore, error) {
	d.semaphoreCalls++
	if d.semaphoreCalls == d.failSemaphoreAt {
		return vk.NullSemaphore, errInjected
	}
	s := newFakeSemaphore()
	d.semaphores[s] = true
	return s, nil
}

func (d *fakeSyncDevice) VKDestroySemaphore(s vk.Semaphore) {
	delete(d.semaphores, s)
}

func (d *fakeSyncDevice) VKCreateFence(signaled bool) (vk.Fence, error) {
	if d.failFence {
		return vk.NullFence, errInjected
	}
	f := newFakeFence()
	d.fences[f] = signaled
	return f, nil
}

func (d *fakeSyncDevice) VKDestroyFence(f vk.Fence) {
	delete(d.fences, f)
}

// WaitForFence fails on an unsignaled fence, nothing would ever signal it.
func (d *fakeSyncDevice) WaitForFence(f vk.Fence, timeout uint64) error {
	d.waits = append(d.waits, f)
	if d.waitErr != nil {
		return d.waitErr
	}
	signaled, ok := d.fences[f]
	if !ok {
		return errors.New("wait on unknown fence")
	}
	if !signaled {
		return errors.New("wait on unsignaled fence would deadlock")
	}
	return nil
}

func (d *fakeSyncDevice) ResetFence(f vk.Fence) error {
	d.resets = append(d.resets, f)
	d.fences[f] = false
	return nil
}

func (d *fakeSyncDevice) signal(f vk.Fence) {
	d.fences[f] = true
}

func (d *fakeSyncDevice) live() int {
	return len(d.semaphores) + len(d.fences)
}

type fakeAllocator struct {
	allocated []*recordingEncoder
	freed     int
	failAt    int // 1 based
}

var _ CommandAllocator = (*fakeAllocator)(nil)

func (a *fakeAllocator) AllocateEncoder() (CommandEncoder, error) {
	if len(a.allocated)+1 == a.failAt {
		return nil, errInjected
	}
	e := &recordingEncoder{}
	a.allocated = append(a.allocated, e)
	return e, nil
}

func (a *fakeAllocator) FreeEncoder(CommandEncoder) {
	a.freed++
}

type pushRecord struct {
	stages vk.ShaderStageFlags
	offset uint32
	data   []byte
}

// block decodes the pushed bytes back into a PushConstantBlock.
func (p pushRecord) block() PushConstantBlock {
	var b PushConstantBlock
	copy(b.Bytes(), p.data)
	return b
}

type drawRecord struct {
	indexCount   uint32
	vertexBuffer vk.Buffer
	indexBuffer  vk.Buffer
	indexType    vk.IndexType
}

// recordingEncoder logs every command recorded into it.
type recordingEncoder struct {
	ops      []string
	barriers []ImageBarrier
	pushes   []pushRecord
	draws    []drawRecord
	sets     [][]vk.DescriptorSet
	clears   []vk.ClearValue
	extent   vk.Extent2D
	viewport vk.Viewport

	vb vk.Buffer
	ib vk.Buffer
	it vk.IndexType

	inPass   bool
	resetErr error
	endErr   error
}

var _ CommandEncoder = (*recordingEncoder)(nil)

func (e *recordingEncoder) op(s string) { e.ops = append(e.ops, s) }

func (e *recordingEncoder) Reset() error {
	e.op("reset")
	if e.resetErr != nil {
		return e.resetErr
	}
	*e = recordingEncoder{ops: []string{"reset"}, endErr: e.endErr}
	return nil
}

func (e *recordingEncoder) Begin() error { e.op("begin"); return nil }

func (e *recordingEncoder) End() error {
	e.op("end")
	return e.endErr
}

func (e *recordingEncoder) PipelineBarrier(b ImageBarrier) {
	e.op("barrier")
	e.barriers = append(e.barriers, b)
}

func (e *recordingEncoder) BeginRenderPass(_ vk.RenderPass, _ vk.Framebuffer, extent vk.Extent2D, clears []vk.ClearValue) {
	e.op("beginPass")
	e.inPass = true
	e.extent = extent
	e.clears = clears
}

func (e *recordingEncoder) EndRenderPass() {
	e.op("endPass")
	e.inPass = false
}

func (e *recordingEncoder) BindGraphicsPipeline(vk.Pipeline) { e.op("pipeline") }

func (e *recordingEncoder) SetViewport(v vk.Viewport) {
	e.op("viewport")
	e.viewport = v
}

func (e *recordingEncoder) SetScissor(vk.Rect2D) { e.op("scissor") }

func (e *recordingEncoder) BindDescriptorSets(_ vk.PipelineLayout, sets ...vk.DescriptorSet) {
	e.op("descriptors")
	e.sets = append(e.sets, sets)
}

func (e *recordingEncoder) PushConstants(_ vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	e.op("push")
	e.pushes = append(e.pushes, pushRecord{stages: stages, offset: offset, data: append([]byte(nil), data...)})
}

func (e *recordingEncoder) BindVertexBuffers(buffers []vk.Buffer, _ []vk.DeviceSize) {
	e.op("vertices")
	e.vb = buffers[0]
}

func (e *recordingEncoder) BindIndexBuffer(buffer vk.Buffer, _ vk.DeviceSize, indexType vk.IndexType) {
	e.op("indices")
	e.ib, e.it = buffer, indexType
}

func (e *recordingEncoder) DrawIndexed(indexCount, _ uint32, _ int32) {
	e.op("draw")
	e.draws = append(e.draws, drawRecord{indexCount: indexCount, vertexBuffer: e.vb, indexBuffer: e.ib, indexType: e.it})
}

func (e *recordingEncoder) VK() vk.CommandBuffer { return nil }

func (e *recordingEncoder) count(op string) int {
	n := 0
	for _, o := range e.ops {
		if o == op {
			n++
		}
	}
	return n
}

type submission struct {
	cmd    CommandEncoder
	wait   vk.Semaphore
	stage  vk.PipelineStageFlags
	signal vk.Semaphore
	fence  vk.Fence
	extent vk.Extent2D
}

// fakeSubmitter completes work immediately by signaling the fence.
type fakeSubmitter struct {
	device      *fakeSyncDevice
	submissions []submission
	err         error
}

var _ Submitter = (*fakeSubmitter)(nil)

func (s *fakeSubmitter) SubmitFrame(cmd CommandEncoder, wait vk.Semaphore, waitStage vk.PipelineStageFlags, signal vk.Semaphore, fence vk.Fence) error {
	if s.err != nil {
		return s.err
	}
	var extent vk.Extent2D
	if e, ok := cmd.(*recordingEncoder); ok {
		extent = e.extent
	}
	s.submissions = append(s.submissions, submission{cmd, wait, waitStage, signal, fence, extent})
	s.device.signal(fence)
	return nil
}

// fakeSurface reports sizes in order. Each WaitEvents moves to the next one.
type fakeSurface struct {
	sizes [][2]int
	pos   int
	waits int
}

var _ SurfaceProvider = (*fakeSurface)(nil)

func (s *fakeSurface) FramebufferSize() (int, int) {
	sz := s.sizes[s.pos]
	return sz[0], sz[1]
}

func (s *fakeSurface) WaitEvents() {
	s.waits++
	if s.pos < len(s.sizes)-1 {
		s.pos++
	}
}

// resizeTo makes sizes[0] current, later entries are reached through WaitEvents.
func (s *fakeSurface) resizeTo(sizes ...[2]int) {
	s.sizes = append(s.sizes[:s.pos+1], sizes...)
	s.pos++
}

type presentRecord struct {
	imageIndex uint32
	wait       vk.Semaphore
}

// fakePresenter hands out images round robin. Results queued in acquire
// and present are returned first, then vk.Success.
type fakePresenter struct {
	imageCount int
	format     vk.Format

	created   []vk.Extent2D
	destroyed int
	live      int
	waitIdle  int

	acquire  []vk.Result
	present  []vk.Result
	next     uint32
	acquires []vk.Semaphore
	presents []presentRecord

	// ops logs acquire, present, create and waitIdle in call order
	ops []string
}

var _ Presenter = (*fakePresenter)(nil)

func newFakePresenter(images int) *fakePresenter {
	return &fakePresenter{imageCount: images, format: vk.FormatB8g8r8a8Unorm}
}

func (p *fakePresenter) CreateImageChain(extent vk.Extent2D) (*ImageChain, error) {
	p.ops = append(p.ops, fmt.Sprintf("create %dx%d", extent.Width, extent.Height))
	p.created = append(p.created, extent)
	p.live++
	chain := &ImageChain{Format: p.format, Extent: extent}
	for i := 0; i < p.imageCount; i++ {
		chain.Images = append(chain.Images, SwapchainImage{Image: newFakeImage(), Framebuffer: newFakeFramebuffer()})
	}
	return chain, nil
}

func (p *fakePresenter) DestroyImageChain(chain *ImageChain) {
	if chain == nil {
		return
	}
	p.destroyed++
	p.live--
}

func (p *fakePresenter) AcquireNextImage(chain *ImageChain, signal vk.Semaphore) (uint32, vk.Result) {
	p.ops = append(p.ops, "acquire")
	p.acquires = append(p.acquires, signal)
	res := vk.Success
	if len(p.acquire) > 0 {
		res, p.acquire = p.acquire[0], p.acquire[1:]
	}
	idx := p.next
	if res == vk.Success || res == vk.Suboptimal {
		p.next = (p.next + 1) % uint32(len(chain.Images))
	}
	return idx, res
}

func (p *fakePresenter) Present(_ *ImageChain, imageIndex uint32, wait vk.Semaphore) vk.Result {
	p.ops = append(p.ops, "present")
	p.presents = append(p.presents, presentRecord{imageIndex, wait})
	res := vk.Success
	if len(p.present) > 0 {
		res, p.present = p.present[0], p.present[1:]
	}
	return res
}

func (p *fakePresenter) WaitIdle() error {
	p.ops = append(p.ops, "waitIdle")
	p.waitIdle++
	return nil
}

type fakePipelines struct {
	limits   PipelineLimits
	built    []*GraphicsPipelineConfig
	released []*GraphicsPipeline
	err      error
}

var _ PipelineFactory = (*fakePipelines)(nil)

func newFakePipelines() *fakePipelines {
	return &fakePipelines{limits: PipelineLimits{MaxPushConstantsSize: 256, FillModeNonSolid: true}}
}

func (f *fakePipelines) Build(cfg *GraphicsPipelineConfig) (*GraphicsPipeline, error) {
	if f.err != nil {
		return nil, Fatal(StagePipeline, f.err)
	}
	cfg = cfg.Clone()
	if err := cfg.Check(f.limits); err != nil {
		return nil, Fatal(StagePipeline, err)
	}
	f.built = append(f.built, cfg)
	return &GraphicsPipeline{Layout: &PipelineLayout{}, Config: cfg}, nil
}

func (f *fakePipelines) Release(p *GraphicsPipeline) {
	f.released = append(f.released, p)
}

func (f *fakePipelines) Limits() PipelineLimits {
	return f.limits
}

type fakeIdler struct {
	calls int
	err   error
}

func (i *fakeIdler) WaitIdle() error {
	i.calls++
	return i.err
}

type fakeTable struct {
	set vk.DescriptorSet
}

func (t *fakeTable) VKDescriptorSet() vk.DescriptorSet {
	return t.set
}

// testPipelineConfig is a minimal scene config, stage files are never read by fakes.
func testPipelineConfig() *GraphicsPipelineConfig {
	return NewGraphicsPipelineConfig().
		AddShaderStage("scene.vert.spv", "main", vk.ShaderStageVertexBit).
		AddShaderStage("scene.frag.spv", "main", vk.ShaderStageFragmentBit)
}

// testRig wires real components to fakes of every device seam.
type testRig struct {
	device    *fakeSyncDevice
	alloc     *fakeAllocator
	submitter *fakeSubmitter
	presenter *fakePresenter
	surface   *fakeSurface
	pipelines *fakePipelines
	idler     *fakeIdler
	table     *fakeTable

	sync      *FrameSynchronizer
	swapchain *SwapchainManager
	recorder  *CommandRecorder
	renderer  *Renderer
}

func newTestRig(framesInFlight, images int, sizes ...[2]int) (*testRig, error) {
	if len(sizes) == 0 {
		sizes = [][2]int{{800, 600}}
	}
	r := &testRig{
		device:    newFakeSyncDevice(),
		alloc:     &fakeAllocator{},
		presenter: newFakePresenter(images),
		surface:   &fakeSurface{sizes: sizes},
		pipelines: newFakePipelines(),
		idler:     &fakeIdler{},
		table:     &fakeTable{set: newFakeDescriptorSet()},
	}
	r.submitter = &fakeSubmitter{device: r.device}

	var err error
	if r.sync, err = NewFrameSynchronizer(r.device, r.alloc, framesInFlight); err != nil {
		return nil, err
	}
	if r.swapchain, err = NewSwapchainManager(r.presenter, r.surface); err != nil {
		return nil, err
	}
	r.recorder = NewCommandRecorder(r.swapchain)

	cfg := DefaultRendererConfig()
	cfg.FramesInFlight = framesInFlight
	r.renderer, err = NewRenderer(cfg, RendererParts{
		Device:     r.idler,
		Sync:       r.sync,
		Swapchain:  r.swapchain,
		Recorder:   r.recorder,
		Submitter:  r.submitter,
		Pipelines:  r.pipelines,
		Table:      r.table,
		BaseConfig: testPipelineConfig(),
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func testItems(n int) []DrawItem {
	items := make([]DrawItem, n)
	for i := range items {
		items[i] = DrawItem{
			VertexBuffer: newFakeBuffer(),
			IndexBuffer:  newFakeBuffer(),
			IndexType:    vk.IndexTypeUint16,
			IndexCount:   uint32(3 * (i + 1)),
			Material:     DefaultMaterial(uint32(i + 1)),
		}
	}
	return items
}
