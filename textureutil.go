package vkg

import (
	"image"
	"image/draw"
	"os"

	// decoders for LoadImageFromDisk
	_ "image/jpeg"
	_ "image/png"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// LoadImageFromDisk decodes a png or jpeg file into RGBA pixels.
func LoadImageFromDisk(file string) (*image.RGBA, error) {
	reader, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	src, _, err := image.Decode(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", file)
	}
	return ToRGBA(src), nil
}

// ToRGBA returns img as tightly packed RGBA, converting when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == rgba.Rect.Dx()*4 && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	m := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(m, m.Bounds(), img, b.Min, draw.Src)
	return m
}

// Texture is a sampled image ready for the descriptor table.
type Texture struct {
	Image *ImageResource
	View  *ImageView
}

func (t *Texture) Destroy() {
	t.View.Destroy()
	t.Image.Destroy()
}

// StageTextureFromImage allocates an image in the pool and uploads srcImg
// into it through the staging pool. The image ends in SHADER_READ_ONLY_OPTIMAL.
func (p *ImageResourcePool) StageTextureFromImage(srcImg *image.RGBA, cmd *CommandBuffer, queue *Queue) (*Texture, error) {
	b := srcImg.Bounds()
	extent := vk.Extent2D{Width: uint32(b.Dx()), Height: uint32(b.Dy())}

	img, err := p.AllocateImage(extent, vk.FormatR8g8b8a8Unorm, vk.ImageTilingOptimal, vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit)
	if err != nil {
		return nil, err
	}

	if err := p.upload(img, srcImg, cmd, queue); err != nil {
		img.Destroy()
		return nil, err
	}

	view, err := img.CreateImageView()
	if err != nil {
		img.Destroy()
		return nil, err
	}
	return &Texture{Image: img, View: view}, nil
}

func (p *ImageResourcePool) upload(img *ImageResource, srcImg *image.RGBA, cmd *CommandBuffer, queue *Queue) error {
	if err := img.AllocateStagingResource(); err != nil {
		return err
	}
	defer img.FreeStagingResource()

	srb := img.StagingResource.Bytes()
	if srb == nil {
		return errors.New("staging pool memory is not mapped")
	}
	copy(srb, ToRGBA(srcImg).Pix)

	toTransfer, err := LayoutTransition(img.VKImage, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	if err != nil {
		return err
	}
	toShader, err := LayoutTransition(img.VKImage, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return err
	}

	if err := cmd.BeginOneTime(); err != nil {
		return err
	}
	cmd.PipelineBarrier(toTransfer)
	if err := cmd.CmdCopyFromStagingResource(img); err != nil {
		return err
	}
	cmd.PipelineBarrier(toShader)
	if err := cmd.End(); err != nil {
		return err
	}

	return errors.Wrap(queue.SubmitAndWait(cmd), "upload texture")
}
