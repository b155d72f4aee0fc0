package vkg

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Buffer are used to map hunks of data that are then bound to resources used by the pipeline
// and command buffers to render data.
type Buffer struct {
	Device   *Device
	VKBuffer vk.Buffer
	Size     uint64
	Usage    vk.BufferUsageFlagBits
}

func (d *Device) CreateBufferWithOptions(sizeInBytes uint64, usage vk.BufferUsageFlagBits, sharing vk.SharingMode) (*Buffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(sizeInBytes),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: sharing,
	}

	var buffer vk.Buffer
	err := vk.Error(vk.CreateBuffer(d.VKDevice, &bufferCreateInfo, nil, &buffer))
	if err != nil {
		return nil, err
	}

	return &Buffer{Device: d, VKBuffer: buffer, Size: sizeInBytes, Usage: usage}, nil
}

func (b *Buffer) VKMemoryRequirements() vk.MemoryRequirements {
	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.Device.VKDevice, b.VKBuffer, &memoryRequirements)
	memoryRequirements.Deref()
	return memoryRequirements
}

func (b *Buffer) Bind(memory *DeviceMemory, offset uint64) error {
	return vk.Error(vk.BindBufferMemory(b.Device.VKDevice, b.VKBuffer, memory.VKDeviceMemory, vk.DeviceSize(offset)))
}

func (b *Buffer) String() string {
	return fmt.Sprintf("buffer{size: %d, usage: %s}", b.Size, usageToString(b.Usage))
}

func (b *Buffer) Destroy() {
	vk.DestroyBuffer(b.Device.VKDevice, b.VKBuffer, nil)
}

var bufferUsageNames = []struct {
	bit  vk.BufferUsageFlagBits
	name string
}{
	{vk.BufferUsageTransferSrcBit, "transfer-src"},
	{vk.BufferUsageTransferDstBit, "transfer-dst"},
	{vk.BufferUsageUniformBufferBit, "uniform"},
	{vk.BufferUsageStorageBufferBit, "storage"},
	{vk.BufferUsageIndexBufferBit, "index"},
	{vk.BufferUsageVertexBufferBit, "vertex"},
}

func usageToString(usage vk.BufferUsageFlagBits) string {
	s := ""
	for _, u := range bufferUsageNames {
		if usage&u.bit == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += u.name
	}
	if s == "" {
		return "none"
	}
	return s
}
