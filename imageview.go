package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ImageView is a 2D view of the first mip level and layer of an Image.
type ImageView struct {
	Device      *Device
	VKImageView vk.ImageView
	Aspect      vk.ImageAspectFlags
}

// CreateImageView creates a color view, as sampled by the texture table and
// rendered to by the swapchain.
func (i *Image) CreateImageView() (*ImageView, error) {
	return i.CreateImageViewWithAspectMask(vk.ImageAspectFlags(vk.ImageAspectColorBit))
}

func (i *Image) CreateImageViewWithAspectMask(mask vk.ImageAspectFlags) (*ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    i.VKImage,
		ViewType: vk.ImageViewType2d,
		Format:   i.VKFormat,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: mask,
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(i.Device.VKDevice, &info, nil, &view)); err != nil {
		return nil, errors.Wrapf(err, "create image view (format %d, aspect %x)", i.VKFormat, mask)
	}
	return &ImageView{Device: i.Device, VKImageView: view, Aspect: mask}, nil
}

// Destroy may be called more than once.
func (v *ImageView) Destroy() {
	if v.VKImageView == vk.NullImageView {
		return
	}
	vk.DestroyImageView(v.Device.VKDevice, v.VKImageView, nil)
	v.VKImageView = vk.NullImageView
}
