package vkg

import (
	"bytes"
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	vk "github.com/vulkan-go/vulkan"
)

const pipelineCacheHeaderVersionOne = 1

// pipelineCacheHeaderSize is length, version, vendor id, device id and the cache uuid.
const pipelineCacheHeaderSize = 16 + 16

// CacheIdentity is what a pipeline cache blob must have been produced by to be reused.
type CacheIdentity struct {
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

// CacheIdentity identifies the driver and device pipeline caches are valid for.
func (p *PhysicalDevice) CacheIdentity() CacheIdentity {
	props := p.VKPhysicalDeviceProperties
	props.Deref()
	return CacheIdentity{
		VendorID: props.VendorID,
		DeviceID: props.DeviceID,
		UUID:     uuid.UUID(props.PipelineCacheUUID),
	}
}

type pipelineCacheHeader struct {
	Length   uint32
	Version  uint32
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

// ValidatePipelineCacheHeader checks that data starts with a version one header
// written by the device described by id.
func ValidatePipelineCacheHeader(data []byte, id CacheIdentity) error {
	if len(data) < pipelineCacheHeaderSize {
		return errors.Newf("pipeline cache of %d bytes is shorter than its header", len(data))
	}

	var h pipelineCacheHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return errors.Wrap(err, "read pipeline cache header")
	}

	switch {
	case h.Length < pipelineCacheHeaderSize || int(h.Length) > len(data):
		return errors.Newf("bad pipeline cache header length %d", h.Length)
	case h.Version != pipelineCacheHeaderVersionOne:
		return errors.Newf("unsupported pipeline cache header version %d", h.Version)
	case h.VendorID != id.VendorID:
		return errors.Newf("pipeline cache vendor %#x, driver expects %#x", h.VendorID, id.VendorID)
	case h.DeviceID != id.DeviceID:
		return errors.Newf("pipeline cache device %#x, driver expects %#x", h.DeviceID, id.DeviceID)
	case h.UUID != id.UUID:
		return errors.Newf("pipeline cache uuid %s, driver expects %s", h.UUID, id.UUID)
	}
	return nil
}

type PipelineCache struct {
	Device          *Device
	VKPipelineCache vk.PipelineCache
}

// CreatePipelineCache creates an empty pipeline cache
func (d *Device) CreatePipelineCache() (*PipelineCache, error) {
	return d.createPipelineCache(nil)
}

func (d *Device) createPipelineCache(initial []byte) (*PipelineCache, error) {
	var pipelineCacheCreate = vk.PipelineCacheCreateInfo{}
	pipelineCacheCreate.SType = vk.StructureTypePipelineCacheCreateInfo
	if len(initial) > 0 {
		pipelineCacheCreate.InitialDataSize = uint(len(initial))
		pipelineCacheCreate.PInitialData = unsafe.Pointer(&initial[0])
	}

	var pipelineCache vk.PipelineCache
	err := vk.Error(vk.CreatePipelineCache(d.VKDevice, &pipelineCacheCreate, nil, &pipelineCache))
	if err != nil {
		return nil, err
	}
	return &PipelineCache{Device: d, VKPipelineCache: pipelineCache}, nil
}

// LoadPipelineCache creates a pipeline cache seeded from path. A missing file
// or one written by another driver or device yields an empty cache.
func LoadPipelineCache(d *Device, path string) (*PipelineCache, error) {
	if path == "" {
		return d.CreatePipelineCache()
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		Logger().Debug("pipeline cache miss", "path", path)
		data = nil
	case err != nil:
		return nil, errors.Wrapf(err, "read pipeline cache %s", path)
	}

	if data != nil {
		if verr := ValidatePipelineCacheHeader(data, d.PhysicalDevice.CacheIdentity()); verr != nil {
			Logger().Warn("discarding pipeline cache", "path", path, "reason", verr)
			data = nil
		} else {
			Logger().Info("pipeline cache loaded", "path", path, "size", units.BytesSize(float64(len(data))))
		}
	}

	cache, err := d.createPipelineCache(data)
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline cache")
	}
	return cache, nil
}

// Data returns the current contents of the cache.
func (c *PipelineCache) Data() ([]byte, error) {
	var size uint
	if err := vk.Error(vk.GetPipelineCacheData(c.Device.VKDevice, c.VKPipelineCache, &size, nil)); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if err := vk.Error(vk.GetPipelineCacheData(c.Device.VKDevice, c.VKPipelineCache, &size, unsafe.Pointer(&data[0]))); err != nil {
		return nil, err
	}
	return data[:size], nil
}

// Save writes the cache contents to path. An empty path is a no-op.
func (c *PipelineCache) Save(path string) error {
	if path == "" {
		return nil
	}
	data, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "get pipeline cache data")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write pipeline cache %s", path)
	}
	Logger().Info("pipeline cache saved", "path", path, "size", units.BytesSize(float64(len(data))))
	return nil
}

func (c *PipelineCache) Destroy() {
	vk.DestroyPipelineCache(c.Device.VKDevice, c.VKPipelineCache, nil)
}
