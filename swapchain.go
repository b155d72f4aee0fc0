package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// DepthFormat is the format of the depth attachment shared by all swapchain images.
const DepthFormat = vk.FormatD32Sfloat

type Swapchain struct {
	Extent      vk.Extent2D
	Format      vk.Format
	Device      *Device
	VKSwapchain vk.Swapchain
}

func (s *Swapchain) Destroy() {
	vk.DestroySwapchain(s.Device.VKDevice, s.VKSwapchain, nil)
}

func (s *Swapchain) GetImages() ([]vk.Image, error) {
	var imageCount uint32
	err := vk.Error(vk.GetSwapchainImages(s.Device.VKDevice, s.VKSwapchain, &imageCount, nil))
	if err != nil {
		return nil, err
	}

	images := make([]vk.Image, imageCount)
	err = vk.Error(vk.GetSwapchainImages(s.Device.VKDevice, s.VKSwapchain, &imageCount, images))
	if err != nil {
		return nil, err
	}
	return images, nil
}

type CreateSwapchainOptions struct {
	// ActualSize is used when the surface leaves the extent up to the swapchain
	ActualSize                vk.Extent2D
	DesiredNumSwapchainImages int
}

// DefaultNumSwapchainImages is one more than the surface minimum, capped at the surface maximum
func (d *Device) DefaultNumSwapchainImages(surface vk.Surface) (int, error) {
	caps, err := d.PhysicalDevice.GetSurfaceCapabilities(surface)
	if err != nil {
		return 0, err
	}
	caps.Deref()

	n := int(caps.MinImageCount) + 1
	if caps.MaxImageCount > 0 && n > int(caps.MaxImageCount) {
		n = int(caps.MaxImageCount)
	}
	return n, nil
}

func clampExtent(e, lo, hi vk.Extent2D) vk.Extent2D {
	if e.Width < lo.Width {
		e.Width = lo.Width
	}
	if e.Height < lo.Height {
		e.Height = lo.Height
	}
	if hi.Width > 0 && e.Width > hi.Width {
		e.Width = hi.Width
	}
	if hi.Height > 0 && e.Height > hi.Height {
		e.Height = hi.Height
	}
	return e
}

func (d *Device) CreateSwapchain(surface vk.Surface, graphicsQueue, presentQueue *Queue, options *CreateSwapchainOptions) (*Swapchain, error) {
	if options == nil {
		options = &CreateSwapchainOptions{}
	}

	modes, err := d.PhysicalDevice.GetSurfacePresentModes(surface)
	if err != nil {
		return nil, err
	}

	presentMode := vk.PresentModeFifo
	if m := modes.Filter(vk.PresentModeMailbox); len(m) > 0 {
		presentMode = m[0]
	}

	format, err := d.PhysicalDevice.ChooseSurfaceFormat(surface)
	if err != nil {
		return nil, err
	}

	caps, err := d.PhysicalDevice.GetSurfaceCapabilities(surface)
	if err != nil {
		return nil, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	swapchainSize := caps.CurrentExtent
	if caps.CurrentExtent.Width == vk.MaxUint32 {
		swapchainSize = clampExtent(options.ActualSize, caps.MinImageExtent, caps.MaxImageExtent)
	}

	desiredSwapChainImages := options.DesiredNumSwapchainImages
	if desiredSwapChainImages == 0 {
		desiredSwapChainImages, err = d.DefaultNumSwapchainImages(surface)
		if err != nil {
			return nil, err
		}
	}

	createInfo := &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    uint32(desiredSwapChainImages),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      swapchainSize,
		PresentMode:      presentMode,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageArrayLayers: 1,
		Clipped:          vk.True,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		OldSwapchain:     vk.NullSwapchain,
	}

	if graphicsQueue.QueueFamily.Index != presentQueue.QueueFamily.Index {
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{uint32(graphicsQueue.QueueFamily.Index), uint32(presentQueue.QueueFamily.Index)}
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var swapchain vk.Swapchain
	err = vk.Error(vk.CreateSwapchain(d.VKDevice, createInfo, nil, &swapchain))
	if err != nil {
		return nil, err
	}

	return &Swapchain{
		VKSwapchain: swapchain,
		Device:      d,
		Extent:      swapchainSize,
		Format:      format.Format,
	}, nil
}

// SwapchainImage is a presentable image together with the view and
// framebuffer rendering into it.
type SwapchainImage struct {
	Image       vk.Image
	View        vk.ImageView
	Framebuffer vk.Framebuffer
}

// ImageChain is the complete set of per image state derived from one
// swapchain. It is created and destroyed as a unit.
type ImageChain struct {
	Swapchain  *Swapchain
	RenderPass vk.RenderPass
	Format     vk.Format
	Extent     vk.Extent2D
	Images     []SwapchainImage
	Depth      *ImageResource
	DepthView  *ImageView
	// Color and ColorView are the multisampled target resolved into each
	// swapchain image, nil when Samples is 1.
	Color     *ImageResource
	ColorView *ImageView
	Samples   vk.SampleCountFlagBits
	// Generation increases each time the chain is rebuilt
	Generation int
}

// Attachments lists the framebuffer attachments for the swapchain image
// behind view, in the order of the scene render pass.
func (c *ImageChain) Attachments(view vk.ImageView) []vk.ImageView {
	if c.ColorView == nil {
		return []vk.ImageView{view, c.DepthView.VKImageView}
	}
	return []vk.ImageView{c.ColorView.VKImageView, c.DepthView.VKImageView, view}
}

// SurfacePresenter builds image chains for a window surface and presents them.
type SurfacePresenter struct {
	Device          *Device
	Surface         vk.Surface
	GraphicsQueue   *Queue
	PresentQueue    *Queue
	ResourceManager *ResourceManager
	RenderPass      vk.RenderPass
	Format          vk.SurfaceFormat
	Samples         vk.SampleCountFlagBits

	// DesiredImages is passed on to swapchain creation, 0 picks the default
	DesiredImages int
}

var _ Presenter = (*SurfacePresenter)(nil)

// NewSurfacePresenter picks the surface format and creates the render pass
// every framebuffer of every chain is compatible with. Pipelines drawn in
// that pass must use the same sample count.
func NewSurfacePresenter(device *Device, surface vk.Surface, graphics, present *Queue, rm *ResourceManager, samples vk.SampleCountFlagBits) (*SurfacePresenter, error) {
	format, err := device.PhysicalDevice.ChooseSurfaceFormat(surface)
	if err != nil {
		return nil, err
	}

	renderPass, err := device.CreateSceneRenderPass(format.Format, DepthFormat, samples)
	if err != nil {
		return nil, err
	}

	return &SurfacePresenter{
		Device:          device,
		Surface:         surface,
		GraphicsQueue:   graphics,
		PresentQueue:    present,
		ResourceManager: rm,
		RenderPass:      renderPass,
		Format:          format,
		Samples:         samples,
	}, nil
}

func (p *SurfacePresenter) CreateImageChain(extent vk.Extent2D) (*ImageChain, error) {
	swapchain, err := p.Device.CreateSwapchain(p.Surface, p.GraphicsQueue, p.PresentQueue, &CreateSwapchainOptions{
		ActualSize:                extent,
		DesiredNumSwapchainImages: p.DesiredImages,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	chain := &ImageChain{
		Swapchain:  swapchain,
		RenderPass: p.RenderPass,
		Format:     swapchain.Format,
		Extent:     swapchain.Extent,
		Samples:    p.Samples,
	}

	if err := p.populate(chain); err != nil {
		p.DestroyImageChain(chain)
		return nil, err
	}
	return chain, nil
}

func (p *SurfacePresenter) populate(chain *ImageChain) error {
	images, err := chain.Swapchain.GetImages()
	if err != nil {
		return errors.Wrap(err, "get swapchain images")
	}

	chain.Depth, err = p.ResourceManager.NewAttachmentResource(chain.Extent, DepthFormat,
		vk.ImageUsageDepthStencilAttachmentBit, chain.Samples)
	if err != nil {
		return errors.Wrap(err, "create depth image")
	}

	chain.DepthView, err = chain.Depth.CreateImageViewWithAspectMask(vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return errors.Wrap(err, "create depth view")
	}

	if chain.Samples > vk.SampleCount1Bit {
		chain.Color, err = p.ResourceManager.NewAttachmentResource(chain.Extent, chain.Format,
			vk.ImageUsageColorAttachmentBit|vk.ImageUsageTransientAttachmentBit, chain.Samples)
		if err != nil {
			return errors.Wrapf(err, "create %dx multisampled color image", chain.Samples)
		}
		chain.ColorView, err = chain.Color.CreateImageView()
		if err != nil {
			return errors.Wrap(err, "create multisampled color view")
		}
	}

	chain.Images = make([]SwapchainImage, 0, len(images))
	for i, image := range images {
		img := &Image{Device: p.Device, VKImage: image, VKFormat: chain.Format}
		view, err := img.CreateImageView()
		if err != nil {
			return errors.Wrapf(err, "create view for swapchain image %d", i)
		}

		si := SwapchainImage{Image: image, View: view.VKImageView}
		// keep the view so a failing framebuffer still gets it destroyed
		chain.Images = append(chain.Images, si)

		fb, err := p.Device.CreateFramebuffer(p.RenderPass, chain.Extent, chain.Attachments(view.VKImageView)...)
		if err != nil {
			return errors.Wrapf(err, "create framebuffer for swapchain image %d", i)
		}
		chain.Images[i].Framebuffer = fb
	}
	return nil
}

func (p *SurfacePresenter) DestroyImageChain(chain *ImageChain) {
	if chain == nil {
		return
	}
	for _, img := range chain.Images {
		if img.Framebuffer != vk.NullFramebuffer {
			vk.DestroyFramebuffer(p.Device.VKDevice, img.Framebuffer, nil)
		}
		vk.DestroyImageView(p.Device.VKDevice, img.View, nil)
	}
	chain.Images = nil

	if chain.ColorView != nil {
		chain.ColorView.Destroy()
		chain.ColorView = nil
	}
	if chain.Color != nil {
		chain.Color.Destroy()
		chain.Color = nil
	}
	if chain.DepthView != nil {
		chain.DepthView.Destroy()
		chain.DepthView = nil
	}
	if chain.Depth != nil {
		chain.Depth.Destroy()
		chain.Depth = nil
	}
	if chain.Swapchain != nil {
		chain.Swapchain.Destroy()
		chain.Swapchain = nil
	}
}

func (p *SurfacePresenter) AcquireNextImage(chain *ImageChain, signal vk.Semaphore) (uint32, vk.Result) {
	var imageIndex uint32
	res := vk.AcquireNextImage(p.Device.VKDevice, chain.Swapchain.VKSwapchain, vk.MaxUint64, signal, vk.NullFence, &imageIndex)
	return imageIndex, res
}

func (p *SurfacePresenter) Present(chain *ImageChain, imageIndex uint32, wait vk.Semaphore) vk.Result {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{chain.Swapchain.VKSwapchain},
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		PImageIndices:      []uint32{imageIndex},
	}
	return vk.QueuePresent(p.PresentQueue.VKQueue, &presentInfo)
}

func (p *SurfacePresenter) WaitIdle() error {
	return p.Device.WaitIdle()
}

// Destroy releases the render pass. Chains must have been destroyed already.
func (p *SurfacePresenter) Destroy() {
	vk.DestroyRenderPass(p.Device.VKDevice, p.RenderPass, nil)
	p.RenderPass = vk.NullRenderPass
}
