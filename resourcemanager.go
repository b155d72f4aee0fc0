package vkg

import (
	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	vk "github.com/vulkan-go/vulkan"
)

const StagingPoolName = "staging"

// ErrInsufficientPoolSpace is returned when a pool has no free range large enough.
var ErrInsufficientPoolSpace = errors.New("insufficient storage space in resource pool")

// ImageResourcePool is a single device memory allocation images are bound into.
type ImageResourcePool struct {
	Device           *Device
	Name             string
	Usage            vk.ImageUsageFlagBits
	Sharing          vk.SharingMode
	MemoryProperties vk.MemoryPropertyFlagBits
	Size             uint64
	Allocator        IAllocator
	Memory           *DeviceMemory
	NeedsStaging     bool
	ResourceManager  *ResourceManager
}

// BufferResourcePool is a single device memory allocation buffers are bound into.
type BufferResourcePool struct {
	Device           *Device
	Name             string
	Usage            vk.BufferUsageFlagBits
	Sharing          vk.SharingMode
	MemoryProperties vk.MemoryPropertyFlagBits
	Size             uint64
	Allocator        IAllocator
	Memory           *DeviceMemory
	NeedsStaging     bool
	ResourceManager  *ResourceManager
}

func (p *ImageResourcePool) AllocateImage(extent vk.Extent2D, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlagBits) (*ImageResource, error) {
	i, err := p.Device.CreateImageWithOptions(extent, format, tiling, usage)
	if err != nil {
		return nil, err
	}

	mr := i.VKMemoryRequirements()

	allocation := p.Allocator.Allocate(uint64(mr.Size), uint64(mr.Alignment))
	if allocation == nil {
		i.Destroy()
		return nil, errors.Wrapf(ErrInsufficientPoolSpace, "image pool %q: %s requested", p.Name, units.BytesSize(float64(mr.Size)))
	}

	err = vk.Error(vk.BindImageMemory(p.Device.VKDevice, i.VKImage, p.Memory.VKDeviceMemory, vk.DeviceSize(allocation.Offset)))
	if err != nil {
		p.Allocator.Free(allocation)
		i.Destroy()
		return nil, err
	}

	i.Size = uint64(mr.Size)
	return &ImageResource{Image: *i, Allocation: allocation, ResourcePool: p}, nil
}

func (p *ImageResourcePool) LogDetails() {
	Logger().Debug("image pool", "name", p.Name, "allocator", p.Allocator)
}

func (p *ImageResourcePool) Destroy() {
	if p.Memory != nil {
		p.Memory.Destroy()
		p.Memory = nil
	}
	p.Allocator = nil
	delete(p.ResourceManager.imagePools, p.Name)
}

// AllocateFor allocates a buffer sized for src, with vertex or index usage
// depending on its type.
func (p *BufferResourcePool) AllocateFor(src ByteSourcer) (*BufferResource, error) {
	switch src.(type) {
	case VertexSourcer:
		return p.AllocateBuffer(uint64(len(src.Bytes())), vk.BufferUsageVertexBufferBit)
	case IndexSourcer:
		return p.AllocateBuffer(uint64(len(src.Bytes())), vk.BufferUsageIndexBufferBit)
	}
	return nil, errors.Newf("unknown buffer object type %T", src)
}

func (p *BufferResourcePool) AllocateBuffer(size uint64, usage vk.BufferUsageFlagBits) (*BufferResource, error) {
	if p.NeedsStaging {
		usage |= vk.BufferUsageTransferDstBit
	}
	buffer, err := p.Device.CreateBufferWithOptions(size, usage, p.Sharing)
	if err != nil {
		return nil, err
	}

	mr := buffer.VKMemoryRequirements()

	allocation := p.Allocator.Allocate(uint64(mr.Size), uint64(mr.Alignment))
	if allocation == nil {
		buffer.Destroy()
		return nil, errors.Wrapf(ErrInsufficientPoolSpace, "buffer pool %q: %s requested", p.Name, units.BytesSize(float64(size)))
	}

	if err := buffer.Bind(p.Memory, allocation.Offset); err != nil {
		p.Allocator.Free(allocation)
		buffer.Destroy()
		return nil, err
	}

	return &BufferResource{Buffer: *buffer, Allocation: allocation, ResourcePool: p}, nil
}

func (p *BufferResourcePool) LogDetails() {
	Logger().Debug("buffer pool", "name", p.Name, "usage", usageToString(p.Usage), "allocator", p.Allocator)
}

func (p *BufferResourcePool) Destroy() {
	if p.Memory != nil {
		p.Memory.Destroy()
		p.Memory = nil
	}
	p.Allocator = nil
	delete(p.ResourceManager.bufferPools, p.Name)
}

// ResourceManager owns named memory pools. Vulkan limits the number of
// device memory allocations, so resources are sub-allocated from pools.
type ResourceManager struct {
	Device      *Device
	bufferPools map[string]*BufferResourcePool
	imagePools  map[string]*ImageResourcePool
}

func (d *Device) CreateResourceManager() *ResourceManager {
	return &ResourceManager{Device: d, bufferPools: make(map[string]*BufferResourcePool), imagePools: make(map[string]*ImageResourcePool)}
}

func (r *ResourceManager) GetStagingPool() *BufferResourcePool {
	return r.bufferPools[StagingPoolName]
}

func needsStaging(mprops vk.MemoryPropertyFlagBits) bool {
	return mprops&vk.MemoryPropertyDeviceLocalBit != 0 && mprops&vk.MemoryPropertyHostVisibleBit == 0
}

func (r *ResourceManager) AllocateDeviceTexturePool(name string, size uint64) (*ImageResourcePool, error) {
	return r.AllocateImagePoolWithOptions(name, size, vk.MemoryPropertyDeviceLocalBit, vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit, vk.SharingModeExclusive)
}

func (r *ResourceManager) AllocateImagePoolWithOptions(name string, size uint64, mprops vk.MemoryPropertyFlagBits, usage vk.ImageUsageFlagBits, sharing vk.SharingMode) (*ImageResourcePool, error) {
	if _, ok := r.imagePools[name]; ok {
		return nil, errors.Newf("image pool %q already exists", name)
	}

	p := &ImageResourcePool{
		Device:           r.Device,
		Name:             name,
		Usage:            usage,
		Sharing:          sharing,
		MemoryProperties: mprops,
		Size:             size,
		Allocator:        &LinearAllocator{Size: size},
		NeedsStaging:     needsStaging(mprops),
		ResourceManager:  r,
	}

	// the memory type is taken from a representative texture
	sample, err := r.Device.CreateImageWithOptions(vk.Extent2D{Width: 256, Height: 256}, vk.FormatR8g8b8a8Unorm, vk.ImageTilingOptimal, usage)
	if err != nil {
		return nil, err
	}
	defer sample.Destroy()

	mr := sample.VKMemoryRequirements()

	memory, err := r.Device.Allocate(int(size), mr.MemoryTypeBits, mprops)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %s for image pool %q", units.BytesSize(float64(size)), name)
	}
	p.Memory = memory

	r.imagePools[name] = p
	p.LogDetails()

	return p, nil
}

// AllocateStagingPool creates the host visible pool used to upload into
// device local pools. Its memory stays mapped for the life of the pool.
func (r *ResourceManager) AllocateStagingPool(size uint64) (*BufferResourcePool, error) {
	p, err := r.AllocateBufferPoolWithOptions(StagingPoolName, size, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit, vk.BufferUsageTransferSrcBit, vk.SharingModeExclusive)
	if err != nil {
		return nil, err
	}
	if _, err := p.Memory.Map(); err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "map staging pool")
	}
	return p, nil
}

// AllocateDeviceVertexAndIndexBufferPool creates a device local pool for mesh
// data, filled through the staging pool.
func (r *ResourceManager) AllocateDeviceVertexAndIndexBufferPool(name string, size uint64) (*BufferResourcePool, error) {
	return r.AllocateBufferPoolWithOptions(name, size, vk.MemoryPropertyDeviceLocalBit, vk.BufferUsageVertexBufferBit|vk.BufferUsageIndexBufferBit, vk.SharingModeExclusive)
}

func (r *ResourceManager) AllocateBufferPoolWithOptions(name string, size uint64, mprops vk.MemoryPropertyFlagBits, usage vk.BufferUsageFlagBits, sharing vk.SharingMode) (*BufferResourcePool, error) {
	if _, ok := r.bufferPools[name]; ok {
		return nil, errors.Newf("buffer pool %q already exists", name)
	}

	p := &BufferResourcePool{
		Device:           r.Device,
		Name:             name,
		Usage:            usage,
		Sharing:          sharing,
		MemoryProperties: mprops,
		Size:             size,
		Allocator:        &LinearAllocator{Size: size},
		NeedsStaging:     needsStaging(mprops),
		ResourceManager:  r,
	}

	if p.NeedsStaging {
		usage |= vk.BufferUsageTransferDstBit
	}

	sample, err := r.Device.CreateBufferWithOptions(size, usage, sharing)
	if err != nil {
		return nil, err
	}
	defer sample.Destroy()

	mr := sample.VKMemoryRequirements()

	memory, err := r.Device.Allocate(int(size), mr.MemoryTypeBits, mprops)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %s for buffer pool %q", units.BytesSize(float64(size)), name)
	}
	p.Memory = memory

	r.bufferPools[name] = p
	p.LogDetails()

	return p, nil
}

func (r *ResourceManager) LogDetails() {
	for _, pool := range r.bufferPools {
		pool.LogDetails()
	}
	for _, pool := range r.imagePools {
		pool.LogDetails()
	}
}

// Used returns the bytes allocated across all pools and their total size.
func (r *ResourceManager) Used() (used, size uint64) {
	for _, p := range r.bufferPools {
		used += p.Allocator.Used()
		size += p.Size
	}
	for _, p := range r.imagePools {
		used += p.Allocator.Used()
		size += p.Size
	}
	return used, size
}

func (r *ResourceManager) ImagePool(name string) *ImageResourcePool {
	return r.imagePools[name]
}

func (r *ResourceManager) BufferPool(name string) *BufferResourcePool {
	return r.bufferPools[name]
}

// Destroy frees every pool. Resources allocated from them must already have
// been released.
func (r *ResourceManager) Destroy() {
	for _, p := range r.bufferPools {
		p.Destroy()
	}
	for _, p := range r.imagePools {
		p.Destroy()
	}
}
