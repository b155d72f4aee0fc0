package vkg

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

type QueueFamilySlice []*QueueFamily

func (ql QueueFamilySlice) Filter(f func(q *QueueFamily) bool) QueueFamilySlice {
	ret := make([]*QueueFamily, 0)
	for _, q := range ql {
		if f(q) {
			ret = append(ret, q)
		}
	}
	return ret
}

// QueueSelection holds the families frames are submitted and presented on.
// Both point at the same family when one can do both.
type QueueSelection struct {
	Graphics *QueueFamily
	Present  *QueueFamily
}

// Shared reports whether submit and present use the same family.
func (s QueueSelection) Shared() bool {
	return s.Graphics == s.Present
}

// Families lists each selected family once, graphics first, in the form
// CreateLogicalDevice expects.
func (s QueueSelection) Families() QueueFamilySlice {
	if s.Shared() {
		return QueueFamilySlice{s.Graphics}
	}
	return QueueFamilySlice{s.Graphics, s.Present}
}

// SelectQueues picks the graphics and present families. canPresent is
// usually PresentsTo(surface). A family that does both wins over the first
// graphics family paired with the first presenting one.
func (ql QueueFamilySlice) SelectQueues(canPresent func(q *QueueFamily) bool) (QueueSelection, error) {
	graphics := ql.Filter((*QueueFamily).IsGraphics)
	if len(graphics) == 0 {
		return QueueSelection{}, errors.Newf("none of %d queue families supports graphics", len(ql))
	}
	for _, q := range graphics {
		if canPresent(q) {
			return QueueSelection{Graphics: q, Present: q}, nil
		}
	}
	present := ql.Filter(canPresent)
	if len(present) == 0 {
		return QueueSelection{}, errors.Newf("none of %d queue families can present", len(ql))
	}
	return QueueSelection{Graphics: graphics[0], Present: present[0]}, nil
}

// PresentsTo returns a SelectQueues predicate asking the driver whether a
// family can present to surface.
func PresentsTo(surface vk.Surface) func(q *QueueFamily) bool {
	return func(q *QueueFamily) bool {
		return q.SupportsPresent(surface)
	}
}

type QueueFamily struct {
	Index                   int
	PhysicalDevice          *PhysicalDevice
	VKQueueFamilyProperties vk.QueueFamilyProperties
}

func (q *QueueFamily) has(bit vk.QueueFlagBits) bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(bit) != 0
}

func (q *QueueFamily) IsGraphics() bool {
	return q.has(vk.QueueGraphicsBit)
}

func (q *QueueFamily) SupportsPresent(surface vk.Surface) bool {
	var supportsPresent vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(q.PhysicalDevice.VKPhysicalDevice, uint32(q.Index), surface, &supportsPresent)
	return supportsPresent == vk.True
}

var queueFlagNames = []struct {
	bit  vk.QueueFlagBits
	name string
}{
	{vk.QueueGraphicsBit, "graphics"},
	{vk.QueueComputeBit, "compute"},
	{vk.QueueTransferBit, "transfer"},
	{vk.QueueSparseBindingBit, "sparse"},
}

// Capabilities names the family's queue flags, joined with '|'.
func (q *QueueFamily) Capabilities() string {
	var names []string
	for _, f := range queueFlagNames {
		if q.has(f.bit) {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

func (q *QueueFamily) String() string {
	return fmt.Sprintf("{index=%d %s queues=%d}", q.Index, q.Capabilities(), q.VKQueueFamilyProperties.QueueCount)
}
