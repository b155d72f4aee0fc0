package vkg

import (
	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	vk "github.com/vulkan-go/vulkan"
)

type VKPresentModes []vk.PresentMode

func (v VKPresentModes) Filter(f vk.PresentMode) VKPresentModes {
	ret := make(VKPresentModes, 0)
	for _, s := range v {
		if f == s {
			ret = append(ret, s)
		}
	}
	return ret
}

type VKSurfaceFormats []vk.SurfaceFormat

func (v VKSurfaceFormats) Filter(f func(f vk.SurfaceFormat) bool) VKSurfaceFormats {
	ret := make(VKSurfaceFormats, 0)
	for _, s := range v {
		s.Deref()
		if f(s) {
			ret = append(ret, s)
		}
	}
	return ret
}

type PhysicalDevice struct {
	DeviceName                 string
	VKPhysicalDevice           vk.PhysicalDevice
	VKPhysicalDeviceProperties vk.PhysicalDeviceProperties
}

func (p *PhysicalDevice) GetSurfacePresentModes(surface vk.Surface) (VKPresentModes, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, nil))
	if err != nil {
		return nil, err
	}

	f := make([]vk.PresentMode, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, f))
	if err != nil {
		return nil, err
	}

	return f, nil

}

func (p *PhysicalDevice) GetSurfaceFormats(surface vk.Surface) (VKSurfaceFormats, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, nil))
	if err != nil {
		return nil, err
	}

	f := make([]vk.SurfaceFormat, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, f))
	if err != nil {
		return nil, err
	}

	return f, nil

}

func (p *PhysicalDevice) GetSurfaceCapabilities(surface vk.Surface) (*vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(p.VKPhysicalDevice, surface, &caps))
	if err != nil {
		return nil, err
	}

	return &caps, err
}

func (p *PhysicalDevice) String() string {
	return p.DeviceName
}

func (p *PhysicalDevice) QueueFamilies() (QueueFamilySlice, error) {
	var queueFamilyCount uint32

	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &queueFamilyCount, nil)

	if queueFamilyCount == 0 {
		return nil, nil
	}

	queues := make([]vk.QueueFamilyProperties, queueFamilyCount)

	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &queueFamilyCount, queues)

	ret := make([]*QueueFamily, queueFamilyCount)
	for i, queue := range queues {

		ret[i] = &QueueFamily{Index: i, PhysicalDevice: p, VKQueueFamilyProperties: queue}

		ret[i].VKQueueFamilyProperties.Deref()

	}

	return ret, nil

}

type CreateDeviceOptions struct {
	EnabledExtensions []string
	EnabledLayers     []string
}

func (p *PhysicalDevice) CreateLogicalDeviceWithOptions(qfs QueueFamilySlice, options *CreateDeviceOptions) (*Device, error) {

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(qfs))
	for j, q := range qfs {

		queueCreateInfo := vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(q.Index),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}

		queueCreateInfos[j] = queueCreateInfo

	}

	deviceFeatures := p.VKPhysicalDeviceFeatures()

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(qfs)),
		PQueueCreateInfos:    queueCreateInfos,
		PEnabledFeatures:     []vk.PhysicalDeviceFeatures{deviceFeatures},
	}

	if options != nil {
		if options.EnabledExtensions != nil {
			deviceCreateInfo.EnabledExtensionCount = uint32(len(options.EnabledExtensions))
			deviceCreateInfo.PpEnabledExtensionNames = safeStrings(options.EnabledExtensions)
		}
		if options.EnabledLayers != nil {
			deviceCreateInfo.EnabledLayerCount = uint32(len(options.EnabledLayers))
			deviceCreateInfo.PpEnabledLayerNames = safeStrings(options.EnabledLayers)
		}
	}

	var ldevice vk.Device

	err := vk.Error(vk.CreateDevice(p.VKPhysicalDevice, &deviceCreateInfo, nil, &ldevice))
	if err != nil {
		return nil, err
	}

	deviceFeatures.Deref()

	return &Device{PhysicalDevice: p, VKDevice: ldevice, EnabledFeatures: deviceFeatures}, nil
}

func (p *PhysicalDevice) CreateLogicalDevice(qfs QueueFamilySlice) (*Device, error) {
	return p.CreateLogicalDeviceWithOptions(qfs, nil)
}

func (p *PhysicalDevice) VKPhysicalDeviceFeatures() vk.PhysicalDeviceFeatures {
	var deviceFeatures vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(p.VKPhysicalDevice, &deviceFeatures)
	return deviceFeatures
}

func (p *PhysicalDevice) MemoryTypes() []vk.MemoryType {
	mp := p.VKPhysicalDeviceMemoryProperties()
	mp.Deref()

	ret := make([]vk.MemoryType, 0)

	var i uint32
	for i = 0; i < mp.MemoryTypeCount; i++ {
		mt := mp.MemoryTypes[i]
		mt.Deref()
		ret = append(ret, mt)
	}
	return ret

}

func (p *PhysicalDevice) VKPhysicalDeviceMemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var memoryProperties vk.PhysicalDeviceMemoryProperties

	vk.GetPhysicalDeviceMemoryProperties(p.VKPhysicalDevice, &memoryProperties)
	return memoryProperties
}

// HeapSummary describes every memory heap by size, device local heaps are
// suffixed with "local".
func (p *PhysicalDevice) HeapSummary() []string {
	mp := p.VKPhysicalDeviceMemoryProperties()
	mp.Deref()

	ret := make([]string, 0, mp.MemoryHeapCount)
	for i := uint32(0); i < mp.MemoryHeapCount; i++ {
		heap := mp.MemoryHeaps[i]
		heap.Deref()
		desc := units.BytesSize(float64(heap.Size))
		if heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			desc += " local"
		}
		ret = append(ret, desc)
	}
	return ret
}

func (p *PhysicalDevice) FindMemoryType(memoryTypeBits uint32, properties vk.MemoryPropertyFlagBits) (uint32, error) {
	memoryProperties := p.VKPhysicalDeviceMemoryProperties()
	mp := &memoryProperties
	mp.Deref()

	var i uint32
	for i = 0; i < mp.MemoryTypeCount; i++ {
		mt := mp.MemoryTypes[i]

		mt.Deref()
		if memoryTypeBits&(1<<i) != 0 &&
			vk.MemoryPropertyFlagBits(mt.PropertyFlags)&properties == properties {
			return i, nil
		}
	}
	return 0, errors.Newf("no memory type matches bits %b with properties %x", memoryTypeBits, properties)
}

func (p *PhysicalDevice) SupportedExtensions() ([]vk.ExtensionProperties, error) {
	var count uint32
	err := vk.Error(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, nil))
	if err != nil {
		return nil, err
	}

	ext := make([]vk.ExtensionProperties, count)

	err = vk.Error(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, ext))
	if err != nil {
		return nil, err
	}
	return ext, nil
}

// Limits returns the implementation limits of the device
func (p *PhysicalDevice) Limits() vk.PhysicalDeviceLimits {
	props := p.VKPhysicalDeviceProperties
	props.Deref()
	props.Limits.Deref()
	return props.Limits
}

// SupportsFillModeNonSolid reports whether line and point polygon modes are available
func (p *PhysicalDevice) SupportsFillModeNonSolid() bool {
	features := p.VKPhysicalDeviceFeatures()
	features.Deref()
	return features.FillModeNonSolid == vk.True
}

// HasExtension reports whether the device exposes the named extension
func (p *PhysicalDevice) HasExtension(name string) bool {
	exts, err := p.SupportedExtensions()
	if err != nil {
		return false
	}
	for _, ext := range exts {
		ext.Deref()
		if vk.ToString(ext.ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

// ChooseSurfaceFormat prefers B8G8R8A8_UNORM and falls back to the first format reported
func (p *PhysicalDevice) ChooseSurfaceFormat(surface vk.Surface) (vk.SurfaceFormat, error) {
	formats, err := p.GetSurfaceFormats(surface)
	if err != nil {
		return vk.SurfaceFormat{}, err
	}
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, errors.Newf("surface reports no formats on %s", p.DeviceName)
	}

	preferred := formats.Filter(func(f vk.SurfaceFormat) bool {
		return f.Format == vk.FormatB8g8r8a8Unorm
	})
	if len(preferred) > 0 {
		return preferred[0], nil
	}

	f := formats[0]
	f.Deref()
	if f.Format == vk.FormatUndefined {
		// the surface has no preference
		f.Format = vk.FormatB8g8r8a8Unorm
		f.ColorSpace = vk.ColorSpaceSrgbNonlinear
	}
	return f, nil
}

// deviceTypeScore ranks device types for rendering, higher is better
var deviceTypeScore = map[vk.PhysicalDeviceType]int{
	vk.PhysicalDeviceTypeDiscreteGpu:   1000,
	vk.PhysicalDeviceTypeIntegratedGpu: 100,
	vk.PhysicalDeviceTypeVirtualGpu:    10,
	vk.PhysicalDeviceTypeCpu:           1,
}

// Score ranks the device for presenting to surface. Devices lacking the
// swapchain extension or a queue able to render and present score 0.
func (p *PhysicalDevice) Score(surface vk.Surface) int {
	if !p.HasExtension(vk.KhrSwapchainExtensionName) {
		return 0
	}
	qfs, err := p.QueueFamilies()
	if err != nil {
		return 0
	}
	if _, err := qfs.SelectQueues(PresentsTo(surface)); err != nil {
		return 0
	}
	props := p.VKPhysicalDeviceProperties
	props.Deref()
	return deviceTypeScore[props.DeviceType] + 1
}

// SelectPhysicalDevice returns the highest scoring device able to present to surface
func SelectPhysicalDevice(devices []*PhysicalDevice, surface vk.Surface) (*PhysicalDevice, error) {
	var best *PhysicalDevice
	bestScore := 0
	for _, d := range devices {
		s := d.Score(surface)
		Logger().Debug("physical device candidate", "name", d.DeviceName, "score", s)
		if s > bestScore {
			best, bestScore = d, s
		}
	}
	if best == nil {
		return nil, errors.Newf("none of %d physical devices can render and present", len(devices))
	}
	return best, nil
}
