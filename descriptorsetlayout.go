package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// DescriptorSetLayout is built up with AddBinding, then created with
// Device.CreateDescriptorSetLayout.
type DescriptorSetLayout struct {
	Device                        *Device
	VKDescriptorSetLayout         vk.DescriptorSetLayout
	VKDescriptorSetLayoutBindings []vk.DescriptorSetLayoutBinding
}

func (d *Device) NewDescriptorSetLayout() *DescriptorSetLayout {
	return &DescriptorSetLayout{Device: d}
}

func (d *DescriptorSetLayout) AddBinding(binding vk.DescriptorSetLayoutBinding) *DescriptorSetLayout {
	d.VKDescriptorSetLayoutBindings = append(d.VKDescriptorSetLayoutBindings, binding)
	return d
}

// DescriptorCount is the total number of descriptors across all bindings.
func (d *DescriptorSetLayout) DescriptorCount() int {
	n := 0
	for _, b := range d.VKDescriptorSetLayoutBindings {
		n += int(b.DescriptorCount)
	}
	return n
}

func (d *DescriptorSetLayout) Destroy() {
	vk.DestroyDescriptorSetLayout(d.Device.VKDevice, d.VKDescriptorSetLayout, nil)
}

// CreateDescriptorSetLayout creates the vulkan object for layout and returns it.
func (d *Device) CreateDescriptorSetLayout(layout *DescriptorSetLayout) (*DescriptorSetLayout, error) {
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layout.VKDescriptorSetLayoutBindings)),
		PBindings:    layout.VKDescriptorSetLayoutBindings,
	}

	var handle vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.VKDevice, &info, nil, &handle)); err != nil {
		return nil, errors.Wrapf(err, "create descriptor set layout with %d descriptors", layout.DescriptorCount())
	}

	layout.Device = d
	layout.VKDescriptorSetLayout = handle
	Logger().Debug("descriptor set layout created", "bindings", len(layout.VKDescriptorSetLayoutBindings),
		"descriptors", layout.DescriptorCount())
	return layout, nil
}
