package vkg

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// AcquireStatus classifies the outcome of acquiring a swapchain image.
type AcquireStatus int

const (
	// AcquireOK means the image matches the surface.
	AcquireOK AcquireStatus = iota
	// AcquireSuboptimal means the image is usable but a rebuild is due.
	AcquireSuboptimal
	// AcquireInvalidated means no image was acquired. Nothing may be recorded
	// or submitted for the frame and Rebuild must run first.
	AcquireInvalidated
)

func (s AcquireStatus) String() string {
	switch s {
	case AcquireOK:
		return "ok"
	case AcquireSuboptimal:
		return "suboptimal"
	case AcquireInvalidated:
		return "invalidated"
	}
	return "unknown"
}

// RenderTarget is what the recorder needs to draw into one swapchain image.
type RenderTarget struct {
	Image       vk.Image
	Framebuffer vk.Framebuffer
	RenderPass  vk.RenderPass
	Extent      vk.Extent2D
}

// SwapchainManager owns the current ImageChain and replaces it whenever the
// surface stops matching it.
type SwapchainManager struct {
	presenter  Presenter
	surface    SurfaceProvider
	chain      *ImageChain
	generation int
	stale      atomic.Bool
}

// NewSwapchainManager builds the first image chain. Like Rebuild it blocks
// while the surface has no drawable area.
func NewSwapchainManager(presenter Presenter, surface SurfaceProvider) (*SwapchainManager, error) {
	m := &SwapchainManager{presenter: presenter, surface: surface}
	if err := m.build(); err != nil {
		return nil, Fatal(StageInit, err)
	}
	return m, nil
}

// waitForDrawableArea polls the surface and blocks on window events until
// it reports a non-zero area.
func (m *SwapchainManager) waitForDrawableArea() vk.Extent2D {
	for {
		w, h := m.surface.FramebufferSize()
		if w > 0 && h > 0 {
			return vk.Extent2D{Width: uint32(w), Height: uint32(h)}
		}
		m.surface.WaitEvents()
	}
}

func (m *SwapchainManager) build() error {
	for {
		extent := m.waitForDrawableArea()
		chain, err := m.presenter.CreateImageChain(extent)
		if err != nil {
			return errors.Wrapf(err, "create image chain %dx%d", extent.Width, extent.Height)
		}
		if chain.Extent.Width > 0 && chain.Extent.Height > 0 {
			m.generation++
			chain.Generation = m.generation
			m.chain = chain
			m.stale.Store(false)
			return nil
		}
		// the surface shrank to nothing between polling and creation
		m.presenter.DestroyImageChain(chain)
		m.surface.WaitEvents()
	}
}

// AcquireNextImage acquires the next image, signaling signal once it is
// ready to be rendered to. Out of date and suboptimal surfaces are reported
// through the status. Every other failure is fatal.
func (m *SwapchainManager) AcquireNextImage(signal vk.Semaphore) (uint32, AcquireStatus, error) {
	imageIndex, res := m.presenter.AcquireNextImage(m.chain, signal)
	switch res {
	case vk.Success:
		return imageIndex, AcquireOK, nil
	case vk.Suboptimal:
		m.stale.Store(true)
		return imageIndex, AcquireSuboptimal, nil
	case vk.ErrorOutOfDate:
		m.stale.Store(true)
		return 0, AcquireInvalidated, nil
	}
	return 0, AcquireInvalidated, Fatal(StageAcquire, errors.Wrap(resultError(res), "acquire next image"))
}

// Present queues imageIndex for presentation once wait is signaled. Out of
// date and suboptimal results only schedule a rebuild.
func (m *SwapchainManager) Present(imageIndex uint32, wait vk.Semaphore) error {
	res := m.presenter.Present(m.chain, imageIndex, wait)
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		m.stale.Store(true)
		return nil
	}
	return Fatal(StagePresent, errors.Wrapf(resultError(res), "present image %d", imageIndex))
}

// Invalidate schedules a rebuild before the next acquire. It is safe to call
// from window callbacks.
func (m *SwapchainManager) Invalidate() {
	m.stale.Store(true)
}

// NeedsRebuild reports whether a rebuild has been scheduled.
func (m *SwapchainManager) NeedsRebuild() bool {
	return m.stale.Load()
}

// Rebuild replaces the image chain. It waits for a drawable area and for
// the device to go idle before the old chain is destroyed.
func (m *SwapchainManager) Rebuild() error {
	m.waitForDrawableArea()

	if err := m.presenter.WaitIdle(); err != nil {
		return Fatal(StageRebuild, errors.Wrap(err, "wait for device idle"))
	}

	m.presenter.DestroyImageChain(m.chain)
	m.chain = nil

	if err := m.build(); err != nil {
		return Fatal(StageRebuild, err)
	}

	Logger().Info("swapchain rebuilt",
		"width", m.chain.Extent.Width,
		"height", m.chain.Extent.Height,
		"images", len(m.chain.Images),
		"generation", m.chain.Generation)

	return nil
}

// RenderTarget returns the target for imageIndex in the current chain.
func (m *SwapchainManager) RenderTarget(imageIndex uint32) (RenderTarget, error) {
	if int(imageIndex) >= len(m.chain.Images) {
		return RenderTarget{}, errors.AssertionFailedf("image index %d out of range for %d images", imageIndex, len(m.chain.Images))
	}
	img := m.chain.Images[imageIndex]
	return RenderTarget{
		Image:       img.Image,
		Framebuffer: img.Framebuffer,
		RenderPass:  m.chain.RenderPass,
		Extent:      m.chain.Extent,
	}, nil
}

func (m *SwapchainManager) Chain() *ImageChain {
	return m.chain
}

func (m *SwapchainManager) Extent() vk.Extent2D {
	return m.chain.Extent
}

func (m *SwapchainManager) Format() vk.Format {
	return m.chain.Format
}

func (m *SwapchainManager) ImageCount() int {
	return len(m.chain.Images)
}

// Destroy waits for the device and releases the current chain.
func (m *SwapchainManager) Destroy() error {
	err := m.presenter.WaitIdle()
	m.presenter.DestroyImageChain(m.chain)
	m.chain = nil
	if err != nil {
		return Fatal(StageShutdown, err)
	}
	return nil
}
