package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ImageResource is an image bound to memory owned by an ImageResourcePool.
type ImageResource struct {
	Image
	ResourcePool    *ImageResourcePool
	Allocation      *Allocation
	StagingResource *BufferResource
	// Does this resource have it's own pool it is responsible for?
	IndividualPool bool
}

// NewAttachmentResource creates a device local render target with samples
// per pixel in its own pool.
func (r *ResourceManager) NewAttachmentResource(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlagBits, samples vk.SampleCountFlagBits) (*ImageResource, error) {
	img, err := r.Device.CreateImageWithSamples(extent, format, vk.ImageTilingOptimal, usage, samples)
	if err != nil {
		return nil, err
	}
	return r.bindImageResource(img, usage, vk.SharingModeExclusive, vk.MemoryPropertyDeviceLocalBit)
}

// bindImageResource gives img dedicated memory. img is destroyed on failure.
func (r *ResourceManager) bindImageResource(img *Image, usage vk.ImageUsageFlagBits, sharing vk.SharingMode, mprops vk.MemoryPropertyFlagBits) (*ImageResource, error) {
	mr := img.VKMemoryRequirements()

	memory, err := r.Device.Allocate(int(mr.Size), mr.MemoryTypeBits, mprops)
	if err != nil {
		img.Destroy()
		return nil, err
	}

	err = vk.Error(vk.BindImageMemory(r.Device.VKDevice, img.VKImage, memory.VKDeviceMemory, vk.DeviceSize(0)))
	if err != nil {
		memory.Destroy()
		img.Destroy()
		return nil, err
	}

	pool := &ImageResourcePool{
		Device:           r.Device,
		Usage:            usage,
		MemoryProperties: mprops,
		Sharing:          sharing,
		Size:             uint64(mr.Size),
		Memory:           memory,
		ResourceManager:  r,
	}

	img.Size = uint64(mr.Size)
	return &ImageResource{Image: *img, ResourcePool: pool, IndividualPool: true}, nil
}

// RequiresStaging indicates that this particular resource
// must be staged before it can be used
func (r *ImageResource) RequiresStaging() bool {
	return r.ResourcePool.NeedsStaging
}

// AllocateStagingResource allocates a buffer in the staging pool large enough
// to hold the image. It must be freed once the copy has completed.
func (r *ImageResource) AllocateStagingResource() error {
	if !r.ResourcePool.NeedsStaging {
		return errors.New("resource does not require staging")
	}
	stagingPool := r.ResourcePool.ResourceManager.GetStagingPool()
	if stagingPool == nil {
		return errors.WithHint(errors.Newf("no %q pool for staging resources", StagingPoolName),
			"create it with ResourceManager.AllocateStagingPool")
	}
	var err error
	r.StagingResource, err = stagingPool.AllocateBuffer(r.Image.Size, vk.BufferUsageTransferSrcBit)
	return err
}

// FreeStagingResource will free the staged resource associated with this resource
func (r *ImageResource) FreeStagingResource() {
	if r.StagingResource != nil {
		r.StagingResource.Free()
		r.StagingResource = nil
	}
}

func (r *ImageResource) Destroy() {
	r.Free()
}

// Free this resource and it's associated resources
func (r *ImageResource) Free() {
	r.FreeStagingResource()
	r.Image.Destroy()
	if r.IndividualPool && r.ResourcePool != nil {
		r.ResourcePool.Memory.Destroy()
		r.ResourcePool = nil
	} else if r.Allocation != nil {
		r.ResourcePool.Allocator.Free(r.Allocation)
		r.Allocation = nil
	}
}

// CmdCopyFromStagingResource copies the staged pixels into the image, which
// must be in TRANSFER_DST_OPTIMAL.
func (c *CommandBuffer) CmdCopyFromStagingResource(img *ImageResource) error {
	if img.StagingResource == nil {
		return errors.New("no staging resource has been allocated")
	}
	c.CmdCopyBufferToImage(img.StagingResource.VKBuffer, img.VKImage, img.Extent)
	return nil
}
