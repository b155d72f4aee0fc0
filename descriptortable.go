package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// DefaultDescriptorCapacity is the number of textures the table holds unless
// the device allows fewer.
const DefaultDescriptorCapacity = 64

// ErrTableFull is returned when every slot of a descriptor table is taken.
var ErrTableFull = errors.New("descriptor table is full")

// slotArray assigns stable array indices to keys. Released indices are
// reused before the array grows.
type slotArray[K comparable] struct {
	capacity int
	next     int
	free     []int
	indices  map[K]int
}

func newSlotArray[K comparable](capacity int) *slotArray[K] {
	return &slotArray[K]{capacity: capacity, indices: make(map[K]int)}
}

// push returns the index of key, assigning one when key is new.
func (s *slotArray[K]) push(key K) (index int, added bool, err error) {
	if i, ok := s.indices[key]; ok {
		return i, false, nil
	}
	switch {
	case len(s.free) > 0:
		index = s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
	case s.next < s.capacity:
		index = s.next
		s.next++
	default:
		return 0, false, errors.Wrapf(ErrTableFull, "%d of %d slots used", len(s.indices), s.capacity)
	}
	s.indices[key] = index
	return index, true, nil
}

// pop releases the index of key. It reports the released index, if any.
func (s *slotArray[K]) pop(key K) (int, bool) {
	i, ok := s.indices[key]
	if !ok {
		return 0, false
	}
	delete(s.indices, key)
	s.free = append(s.free, i)
	return i, true
}

func (s *slotArray[K]) len() int {
	return len(s.indices)
}

// DescriptorTable is a single descriptor set whose binding 0 is an array of
// combined image samplers. Shaders address textures by their array index.
//
// Every element initially refers to the fallback view, so indices which were
// never pushed still sample something valid. The table may only be modified
// while no frame using it is in flight.
type DescriptorTable struct {
	Device   *Device
	Layout   *DescriptorSetLayout
	Pool     *DescriptorPool
	Set      *DescriptorSet
	Sampler  vk.Sampler
	Fallback vk.ImageView

	slots *slotArray[vk.ImageView]
}

var _ DescriptorBinding = (*DescriptorTable)(nil)

// MaxTextureDescriptors is how many sampled images a single fragment shader
// may access on this device.
func (d *Device) MaxTextureDescriptors() int {
	limits := d.Limits()
	n := limits.MaxPerStageDescriptorSamplers
	if limits.MaxPerStageDescriptorSampledImages < n {
		n = limits.MaxPerStageDescriptorSampledImages
	}
	return int(n)
}

func clampCapacity(requested, deviceMax int) int {
	if requested <= 0 {
		requested = DefaultDescriptorCapacity
	}
	if deviceMax > 0 && requested > deviceMax {
		return deviceMax
	}
	return requested
}

// CreateLinearSampler creates a linear filtering, repeating sampler
func (d *Device) CreateLinearSampler() (vk.Sampler, error) {
	var sampler vk.Sampler
	err := vk.Error(vk.CreateSampler(d.VKDevice, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}, nil, &sampler))
	if err != nil {
		return vk.NullSampler, err
	}
	return sampler, nil
}

// NewDescriptorTable creates a table of up to capacity textures visible to
// stages, filled with fallback. The capacity is clamped to the device limit.
func NewDescriptorTable(d *Device, capacity int, fallback vk.ImageView, stages vk.ShaderStageFlagBits) (*DescriptorTable, error) {
	capacity = clampCapacity(capacity, d.MaxTextureDescriptors())

	t := &DescriptorTable{Device: d, Fallback: fallback, slots: newSlotArray[vk.ImageView](capacity)}

	var err error
	t.Sampler, err = d.CreateLinearSampler()
	if err != nil {
		return nil, Fatal(StageInit, errors.Wrap(err, "create sampler"))
	}

	layout := d.NewDescriptorSetLayout().AddBinding(vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: uint32(capacity),
		StageFlags:      vk.ShaderStageFlags(stages),
	})
	t.Layout, err = d.CreateDescriptorSetLayout(layout)
	if err != nil {
		t.Destroy()
		return nil, Fatal(StageInit, errors.Wrap(err, "create descriptor set layout"))
	}

	t.Pool, err = d.CreateDescriptorPool(d.NewDescriptorPool().AddPoolSize(vk.DescriptorTypeCombinedImageSampler, capacity), 1)
	if err != nil {
		t.Destroy()
		return nil, Fatal(StageInit, errors.Wrap(err, "create descriptor pool"))
	}

	t.Set, err = t.Pool.Allocate(t.Layout)
	if err != nil {
		t.Destroy()
		return nil, Fatal(StageInit, errors.Wrap(err, "allocate descriptor set"))
	}

	fill := make([]vk.DescriptorImageInfo, capacity)
	for i := range fill {
		fill[i] = t.imageInfo(fallback)
	}
	t.Set.AddCombinedImageSamplers(0, 0, fill)
	t.Set.Write()

	Logger().Debug("descriptor table created", "capacity", capacity)

	return t, nil
}

func (t *DescriptorTable) imageInfo(view vk.ImageView) vk.DescriptorImageInfo {
	return vk.DescriptorImageInfo{
		Sampler:     t.Sampler,
		ImageView:   view,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
}

// Push makes view available to shaders and returns its texture index. Pushing
// a view twice returns the same index.
func (t *DescriptorTable) Push(view vk.ImageView) (uint32, error) {
	i, added, err := t.slots.push(view)
	if err != nil {
		return 0, err
	}
	if added {
		t.Set.AddCombinedImageSamplers(0, i, []vk.DescriptorImageInfo{t.imageInfo(view)})
		t.Set.Write()
	}
	return uint32(i), nil
}

// Remove points the index of view back at the fallback and frees it for reuse.
func (t *DescriptorTable) Remove(view vk.ImageView) {
	i, ok := t.slots.pop(view)
	if !ok {
		return
	}
	t.Set.AddCombinedImageSamplers(0, i, []vk.DescriptorImageInfo{t.imageInfo(t.Fallback)})
	t.Set.Write()
}

// Len is the number of views currently in the table.
func (t *DescriptorTable) Len() int {
	return t.slots.len()
}

func (t *DescriptorTable) Capacity() int {
	return t.slots.capacity
}

func (t *DescriptorTable) VKDescriptorSet() vk.DescriptorSet {
	return t.Set.VKDescriptorSet
}

func (t *DescriptorTable) VKDescriptorSetLayout() vk.DescriptorSetLayout {
	return t.Layout.VKDescriptorSetLayout
}

// Destroy releases the pool, layout and sampler. The views stay owned by the caller.
func (t *DescriptorTable) Destroy() {
	if t.Pool != nil {
		t.Pool.Destroy()
		t.Pool = nil
		t.Set = nil
	}
	if t.Layout != nil {
		t.Layout.Destroy()
		t.Layout = nil
	}
	if t.Sampler != vk.NullSampler {
		vk.DestroySampler(t.Device.VKDevice, t.Sampler, nil)
		t.Sampler = vk.NullSampler
	}
}
