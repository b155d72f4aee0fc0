package vkg

import (
	"image"
	"image/color"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// Pool names created by GraphicsApp.
const (
	TexturePoolName = "textures"
	MeshPoolName    = "meshes"
)

// GraphicsAppOptions configures NewGraphicsApp.
type GraphicsAppOptions struct {
	Name    string
	Version Version
	// Debug enables the validation layer when available
	Debug bool

	Renderer RendererConfig

	// Pipeline holds the shader stages and vertex layout of the scene. The
	// texture table layout is appended by the app.
	Pipeline *GraphicsPipelineConfig

	StagingPoolSize uint64
	TexturePoolSize uint64
	MeshPoolSize    uint64
}

// DefaultGraphicsAppOptions returns options with the default renderer config
// and pool sizes. Pipeline must still be filled in.
func DefaultGraphicsAppOptions(name string) GraphicsAppOptions {
	return GraphicsAppOptions{
		Name:            name,
		Version:         Version{Major: 1},
		Renderer:        DefaultRendererConfig(),
		StagingPoolSize: 64 * units.MiB,
		TexturePoolSize: 128 * units.MiB,
		MeshPoolSize:    32 * units.MiB,
	}
}

// GraphicsApp owns every vulkan object needed to draw to a window. Objects
// are created in field order and destroyed in reverse.
type GraphicsApp struct {
	Window WindowSurface

	App            *App
	Instance       *Instance
	VKSurface      vk.Surface
	PhysicalDevice *PhysicalDevice
	Device         *Device
	GraphicsQueue  *Queue
	PresentQueue   *Queue

	CommandPool     *CommandPool
	ResourceManager *ResourceManager
	Presenter       *SurfacePresenter
	Swapchain       *SwapchainManager

	Fallback *Texture
	Table    *DescriptorTable

	PipelineCache *PipelineCache
	Builder       *PipelineBuilder

	Sync     *FrameSynchronizer
	Recorder *CommandRecorder
	Renderer *Renderer

	options  GraphicsAppOptions
	textures []*Texture
	meshes   []*Mesh
}

// NewGraphicsApp brings up vulkan for window. On failure everything created
// so far is released.
func NewGraphicsApp(window WindowSurface, opts GraphicsAppOptions) (*GraphicsApp, error) {
	if opts.Pipeline == nil {
		return nil, errors.AssertionFailedf("graphics app created without a pipeline config")
	}
	if err := opts.Renderer.Validate(); err != nil {
		return nil, Fatal(StageInit, err)
	}

	a := &GraphicsApp{
		Window:  window,
		App:     &App{Name: opts.Name, EngineName: "vkg", Version: opts.Version},
		options: opts,
	}
	if err := a.init(); err != nil {
		a.Destroy()
		if !IsFatal(err) {
			err = Fatal(StageInit, err)
		}
		return nil, err
	}
	return a, nil
}

func (a *GraphicsApp) init() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"instance", a.createInstance},
		{"surface", a.createSurface},
		{"device", a.createDevice},
		{"command pool", a.createCommandPool},
		{"resources", a.createResources},
		{"swapchain", a.createSwapchain},
		{"descriptor table", a.createTable},
		{"pipelines", a.createPipelineBuilder},
		{"frame loop", a.createRenderer},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return errors.Wrapf(err, "init %s", s.name)
		}
	}
	return nil
}

func (a *GraphicsApp) createInstance() error {
	if err := Initialize(a.Window.ProcAddr()); err != nil {
		return err
	}

	supported, err := SupportedExtensions()
	if err != nil {
		return err
	}
	for _, ext := range a.Window.RequiredInstanceExtensions() {
		if !contains(supported, ext) {
			return errors.Newf("extension %q required by the window is not supported", ext)
		}
		a.App.EnableExtension(ext)
	}

	debug := a.options.Debug && a.App.EnableDebugging()

	a.Instance, err = a.App.CreateInstance()
	if err != nil {
		return err
	}

	if debug && contains(a.App.EnabledExtensions, vk.ExtDebugReportExtensionName) {
		if err := a.Instance.UseDefaultDebugCallback(); err != nil {
			Logger().Warn("no validation messages", "reason", err)
		}
	}
	return nil
}

func (a *GraphicsApp) createSurface() error {
	surface, err := a.Window.CreateSurface(a.Instance.VKInstance)
	if err != nil {
		return errors.Wrap(err, "create window surface")
	}
	a.VKSurface = surface
	return nil
}

func (a *GraphicsApp) createDevice() error {
	devices, err := a.Instance.PhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "enumerate physical devices")
	}
	a.PhysicalDevice, err = SelectPhysicalDevice(devices, a.VKSurface)
	if err != nil {
		return errors.WithHint(err, "a GPU with swapchain support is required")
	}

	qfs, err := a.PhysicalDevice.QueueFamilies()
	if err != nil {
		return errors.Wrap(err, "get queue families")
	}

	queues, err := qfs.SelectQueues(PresentsTo(a.VKSurface))
	if err != nil {
		return errors.Wrapf(err, "select queues on %s", a.PhysicalDevice.DeviceName)
	}
	families := queues.Families()

	a.Device, err = a.PhysicalDevice.CreateLogicalDeviceWithOptions(families, &CreateDeviceOptions{
		EnabledExtensions: []string{vk.KhrSwapchainExtensionName},
	})
	if err != nil {
		return errors.Wrap(err, "create logical device")
	}

	a.GraphicsQueue = a.Device.GetQueue(queues.Graphics)
	a.PresentQueue = a.GraphicsQueue
	if !queues.Shared() {
		a.PresentQueue = a.Device.GetQueue(queues.Present)
	}

	Logger().Info("device selected",
		"name", a.PhysicalDevice.DeviceName,
		"queueFamilies", families,
		"wireframe", a.Device.PipelineLimits().FillModeNonSolid,
		"heaps", a.PhysicalDevice.HeapSummary())
	return nil
}

func (a *GraphicsApp) createCommandPool() error {
	var err error
	a.CommandPool, err = a.Device.CreateCommandPool(a.GraphicsQueue.QueueFamily)
	return err
}

func (a *GraphicsApp) createResources() error {
	a.ResourceManager = a.Device.CreateResourceManager()

	if _, err := a.ResourceManager.AllocateStagingPool(a.options.StagingPoolSize); err != nil {
		return err
	}
	if _, err := a.ResourceManager.AllocateDeviceTexturePool(TexturePoolName, a.options.TexturePoolSize); err != nil {
		return err
	}
	if _, err := a.ResourceManager.AllocateDeviceVertexAndIndexBufferPool(MeshPoolName, a.options.MeshPoolSize); err != nil {
		return err
	}
	return nil
}

func (a *GraphicsApp) createSwapchain() error {
	samples := a.Device.PipelineLimits().Samples(a.options.Renderer.Samples)
	Logger().Info("multisampling", "requested", a.options.Renderer.Samples, "samples", int(samples))

	var err error
	a.Presenter, err = NewSurfacePresenter(a.Device, a.VKSurface, a.GraphicsQueue, a.PresentQueue, a.ResourceManager, samples)
	if err != nil {
		return err
	}
	a.Swapchain, err = NewSwapchainManager(a.Presenter, a.Window)
	return err
}

// whitePixel is sampled through every table slot no texture was pushed to.
func whitePixel() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func (a *GraphicsApp) createTable() error {
	var err error
	a.Fallback, err = a.stageTexture(whitePixel())
	if err != nil {
		return errors.Wrap(err, "upload fallback texture")
	}
	a.Table, err = NewDescriptorTable(a.Device, a.options.Renderer.DescriptorCapacity, a.Fallback.View.VKImageView, vk.ShaderStageFragmentBit)
	return err
}

func (a *GraphicsApp) createPipelineBuilder() error {
	var err error
	a.PipelineCache, err = LoadPipelineCache(a.Device, a.options.Renderer.PipelineCachePath)
	if err != nil {
		return err
	}
	a.Builder = &PipelineBuilder{Device: a.Device, RenderPass: a.Presenter.RenderPass, Cache: a.PipelineCache}
	return nil
}

func (a *GraphicsApp) createRenderer() error {
	cfg := a.options.Renderer

	var err error
	a.Sync, err = NewFrameSynchronizer(a.Device, a.CommandPool, cfg.FramesInFlight)
	if err != nil {
		return err
	}

	a.Recorder = NewCommandRecorder(a.Swapchain)

	base := a.options.Pipeline.WithSamples(a.Presenter.Samples, cfg.SampleShading)
	base.DescriptorSetLayouts = append([]vk.DescriptorSetLayout{a.Table.VKDescriptorSetLayout()}, base.DescriptorSetLayouts...)

	a.Renderer, err = NewRenderer(cfg, RendererParts{
		Device:     a.Device,
		Sync:       a.Sync,
		Swapchain:  a.Swapchain,
		Recorder:   a.Recorder,
		Submitter:  a.GraphicsQueue,
		Pipelines:  a.Builder,
		Table:      a.Table,
		BaseConfig: base,
	})
	return err
}

// transient runs fn with a command buffer that is freed afterwards.
func (a *GraphicsApp) transient(fn func(cmd *CommandBuffer) error) error {
	cmd, err := a.CommandPool.AllocateBuffer()
	if err != nil {
		return err
	}
	defer a.CommandPool.FreeBuffer(cmd)
	return fn(cmd)
}

func (a *GraphicsApp) stageTexture(img *image.RGBA) (*Texture, error) {
	pool := a.ResourceManager.ImagePool(TexturePoolName)
	var tex *Texture
	err := a.transient(func(cmd *CommandBuffer) error {
		var err error
		tex, err = pool.StageTextureFromImage(img, cmd, a.GraphicsQueue)
		return err
	})
	return tex, err
}

// AddTexture uploads img and pushes it into the descriptor table. The
// returned index is what materials refer to.
func (a *GraphicsApp) AddTexture(img image.Image) (uint32, error) {
	tex, err := a.stageTexture(ToRGBA(img))
	if err != nil {
		return 0, err
	}
	idx, err := a.Table.Push(tex.View.VKImageView)
	if err != nil {
		tex.Destroy()
		return 0, err
	}
	a.textures = append(a.textures, tex)
	return idx, nil
}

// Mesh is indexed geometry uploaded into the mesh pool.
type Mesh struct {
	Vertices   *BufferResource
	Indices    *BufferResource
	IndexType  vk.IndexType
	IndexCount uint32
}

// DrawItem returns a draw of m with the given transform and material.
func (m *Mesh) DrawItem(model mgl32.Mat4, position mgl32.Vec3, material Material) DrawItem {
	return DrawItem{
		VertexBuffer: m.Vertices.VKBuffer,
		IndexBuffer:  m.Indices.VKBuffer,
		IndexType:    m.IndexType,
		IndexCount:   m.IndexCount,
		Transform:    model,
		Position:     position,
		Material:     material,
	}
}

func (m *Mesh) Destroy() {
	m.Indices.Destroy()
	m.Vertices.Destroy()
}

func indexSize(t vk.IndexType) int {
	if t == vk.IndexTypeUint16 {
		return 2
	}
	return 4
}

// AddMesh uploads vertices and indices into the mesh pool.
func (a *GraphicsApp) AddMesh(vertices ByteSourcer, indices IndexSourcer) (*Mesh, error) {
	pool := a.ResourceManager.BufferPool(MeshPoolName)
	m := &Mesh{IndexType: indices.IndexType()}
	m.IndexCount = uint32(len(indices.Bytes()) / indexSize(m.IndexType))

	err := a.transient(func(cmd *CommandBuffer) error {
		var err error
		if m.Vertices, err = pool.Upload(vertices, cmd, a.GraphicsQueue); err != nil {
			return errors.Wrap(err, "upload vertices")
		}
		if m.Indices, err = pool.Upload(indices, cmd, a.GraphicsQueue); err != nil {
			m.Vertices.Destroy()
			return errors.Wrap(err, "upload indices")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.meshes = append(a.meshes, m)
	return m, nil
}

// Destroy waits for the device and releases everything in reverse creation
// order. It is safe on a partially initialized app.
func (a *GraphicsApp) Destroy() error {
	var err error
	if a.Device != nil {
		if werr := a.Device.WaitIdle(); werr != nil {
			err = errors.CombineErrors(err, werr)
		}
	}

	if a.Renderer != nil {
		err = errors.CombineErrors(err, a.Renderer.Shutdown())
		a.Renderer = nil
	}
	a.Recorder = nil
	if a.Sync != nil {
		err = errors.CombineErrors(err, a.Sync.Destroy())
		a.Sync = nil
	}
	a.Builder = nil
	if a.PipelineCache != nil {
		if serr := a.PipelineCache.Save(a.options.Renderer.PipelineCachePath); serr != nil {
			Logger().Warn("pipeline cache not saved", "reason", serr)
		}
		a.PipelineCache.Destroy()
		a.PipelineCache = nil
	}

	for _, m := range a.meshes {
		m.Destroy()
	}
	a.meshes = nil
	if a.Table != nil {
		a.Table.Destroy()
		a.Table = nil
	}
	for _, t := range a.textures {
		t.Destroy()
	}
	a.textures = nil
	if a.Fallback != nil {
		a.Fallback.Destroy()
		a.Fallback = nil
	}

	if a.Swapchain != nil {
		err = errors.CombineErrors(err, a.Swapchain.Destroy())
		a.Swapchain = nil
	}
	if a.Presenter != nil {
		a.Presenter.Destroy()
		a.Presenter = nil
	}
	if a.ResourceManager != nil {
		a.ResourceManager.Destroy()
		a.ResourceManager = nil
	}
	if a.CommandPool != nil {
		a.CommandPool.Destroy()
		a.CommandPool = nil
	}
	if a.Device != nil {
		a.Device.Destroy()
		a.Device = nil
	}
	if a.VKSurface != vk.NullSurface {
		vk.DestroySurface(a.Instance.VKInstance, a.VKSurface, nil)
		a.VKSurface = vk.NullSurface
	}
	if a.Instance != nil {
		a.Instance.Destroy()
		a.Instance = nil
	}

	if err != nil {
		return Fatal(StageShutdown, err)
	}
	return nil
}
