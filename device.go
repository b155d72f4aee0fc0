package vkg

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Device is the logical device together with the features it was created with
type Device struct {
	PhysicalDevice *PhysicalDevice
	VKDevice       vk.Device
	// EnabledFeatures are the physical device features turned on at creation
	EnabledFeatures vk.PhysicalDeviceFeatures
}

var _ SyncDevice = (*Device)(nil)

func (d *Device) Destroy() {
	vk.DestroyDevice(d.VKDevice, nil)
}

func (d *Device) String() string {
	return fmt.Sprintf("{ PhysicalDevice: %s }", d.PhysicalDevice)
}

// WaitIdle blocks until all queues of the device are idle
func (d *Device) WaitIdle() error {
	return resultError(vk.DeviceWaitIdle(d.VKDevice))
}

func (d *Device) GetQueue(qf *QueueFamily) *Queue {
	var vkq vk.Queue

	vk.GetDeviceQueue(d.VKDevice, uint32(qf.Index), 0, &vkq)

	return &Queue{Device: d, QueueFamily: qf, VKQueue: vkq}
}

// Limits returns the physical device limits
func (d *Device) Limits() vk.PhysicalDeviceLimits {
	return d.PhysicalDevice.Limits()
}

func (d *Device) Allocate(sizeInBytes int, memoryTypeBits uint32, memoryProperties vk.MemoryPropertyFlagBits) (*DeviceMemory, error) {
	var allocateInfo = vk.MemoryAllocateInfo{}
	allocateInfo.SType = vk.StructureTypeMemoryAllocateInfo
	allocateInfo.AllocationSize = vk.DeviceSize(sizeInBytes)

	var err error

	allocateInfo.MemoryTypeIndex, err = d.PhysicalDevice.FindMemoryType(memoryTypeBits, memoryProperties)
	if err != nil {
		return nil, err
	}

	var deviceMemory vk.DeviceMemory

	err = vk.Error(vk.AllocateMemory(d.VKDevice, &allocateInfo, nil, &deviceMemory))
	if err != nil {
		return nil, err
	}

	return &DeviceMemory{Size: uint64(sizeInBytes), Device: d, VKDeviceMemory: deviceMemory}, nil
}
