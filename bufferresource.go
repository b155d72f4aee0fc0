package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// BufferResource is a buffer based resource, for example
// vertex buffer, index buffer, UBO,  which have been allocated
// from a larger pool of device memory. Vulkan limits the number of
// memory allocations that can be done by an application, so applications
// should manage their own pools of memory. A BufferResource is a buffer
// which has been managed by the ResourceManager.
type BufferResource struct {
	Buffer
	ResourcePool    *BufferResourcePool
	Allocation      *Allocation
	StagingResource *BufferResource
}

// RequiresStaging indicates that this particular buffer resource
// must be staged before it can be used. This is primarly
// indicative that the BufferResource is stored in device memory.
func (r *BufferResource) RequiresStaging() bool {
	return r.ResourcePool.NeedsStaging
}

func (r *BufferResource) String() string {
	return r.Buffer.String()
}

// AllocateStagingResource will allocate an apporpriate resource
// which can be used for staging this resource. Once allocated
// it must be explicitly free'd. The staging resource is allocated
// from a resource pool called 'staging', which the program must create
func (r *BufferResource) AllocateStagingResource() error {
	if !r.ResourcePool.NeedsStaging {
		return errors.New("resource does not require staging")
	}
	stagingPool := r.ResourcePool.ResourceManager.GetStagingPool()
	if stagingPool == nil {
		return errors.WithHint(errors.Newf("no %q pool for staging resources", StagingPoolName),
			"create it with ResourceManager.AllocateStagingPool")
	}
	var err error
	r.StagingResource, err = stagingPool.AllocateBuffer(r.Buffer.Size, vk.BufferUsageTransferSrcBit)
	return err
}

// FreeStagingResource will free the staged resource associated with this resource
func (r *BufferResource) FreeStagingResource() {
	if r.StagingResource != nil {
		r.StagingResource.Free()
		r.StagingResource = nil
	}
}

// CmdCopyBufferFromStagedResource will populate this buffer from the previously
// allocated staged resource
func (c *CommandBuffer) CmdCopyBufferFromStagedResource(resource *BufferResource) {
	vk.CmdCopyBuffer(c.VK(), resource.StagingResource.VKBuffer, resource.VKBuffer, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(resource.Buffer.Size),
	}})
}

// Bytes returns a byte slice representing the mapped memory, which can be
// read from or copied to. It is nil unless the pool memory is mapped.
func (r *BufferResource) Bytes() []byte {
	if r.RequiresStaging() {
		return nil
	}
	return r.ResourcePool.Memory.bytes(r.Allocation.Offset, r.Buffer.Size)
}

// Upload allocates a buffer for src and fills it, through the staging pool
// when the pool is device local. Staged copies are submitted on queue using
// cmd and waited for.
func (p *BufferResourcePool) Upload(src ByteSourcer, cmd *CommandBuffer, queue *Queue) (*BufferResource, error) {
	data := src.Bytes()
	if len(data) == 0 {
		return nil, errors.New("upload of empty buffer")
	}

	res, err := p.AllocateFor(src)
	if err != nil {
		return nil, err
	}

	if !res.RequiresStaging() {
		if _, err := p.Memory.Map(); err != nil {
			res.Free()
			return nil, errors.Wrapf(err, "map buffer pool %q", p.Name)
		}
		copy(res.Bytes(), data)
		return res, nil
	}

	if err := res.AllocateStagingResource(); err != nil {
		res.Free()
		return nil, err
	}
	defer res.FreeStagingResource()

	copy(res.StagingResource.Bytes(), data)

	if err := cmd.BeginOneTime(); err != nil {
		res.Free()
		return nil, err
	}
	cmd.CmdCopyBufferFromStagedResource(res)
	if err := cmd.End(); err != nil {
		res.Free()
		return nil, err
	}

	if err := queue.SubmitAndWait(cmd); err != nil {
		res.Free()
		return nil, errors.Wrapf(err, "upload %s", res)
	}
	return res, nil
}

func (r *BufferResource) Destroy() {
	r.Free()
}

// Free this resource and it's associated resources
func (r *BufferResource) Free() {
	r.FreeStagingResource()
	if r.Buffer.VKBuffer != vk.NullBuffer {
		r.Buffer.Destroy()
		r.Buffer.VKBuffer = vk.NullBuffer
	}
	if r.Allocation != nil {
		r.ResourcePool.Allocator.Free(r.Allocation)
		r.Allocation = nil
	}
}
