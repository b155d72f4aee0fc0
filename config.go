package vkg

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// RendererConfig collects the tunables of a Renderer.
type RendererConfig struct {
	FramesInFlight int
	ClearColor     [4]float32

	Wireframe bool
	LineWidth float32

	// Samples is the requested MSAA sample count, 0 takes the most the
	// device supports and 1 turns multisampling off. Unsupported counts are
	// lowered to the next supported one.
	Samples int
	// SampleShading is the minimum fraction of samples shaded per pixel, 0
	// disables sample shading.
	SampleShading float32

	View ViewParameters

	// DescriptorCapacity is the requested size of the texture table, clamped to the device.
	DescriptorCapacity int

	// PipelineCachePath is where the pipeline cache is loaded from and saved
	// to. Empty disables persistence.
	PipelineCachePath string
}

func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		FramesInFlight:     DefaultFramesInFlight,
		ClearColor:         [4]float32{0, 0, 0, 1},
		LineWidth:          1,
		View:               DefaultViewParameters(),
		DescriptorCapacity: DefaultDescriptorCapacity,
	}
}

// Validate reports the first setting which cannot work.
func (c *RendererConfig) Validate() error {
	switch {
	case c.FramesInFlight < 1:
		return errors.WithHint(
			errors.Newf("frames in flight is %d", c.FramesInFlight),
			"use at least 1, 2 is typical")
	case c.LineWidth <= 0:
		return errors.Newf("line width must be positive, got %g", c.LineWidth)
	case c.Samples < 0 || c.Samples > 64 || c.Samples&(c.Samples-1) != 0:
		return errors.WithHint(
			errors.Newf("invalid sample count %d", c.Samples),
			"use a power of two up to 64, or 0 for the device maximum")
	case c.SampleShading < 0 || c.SampleShading > 1:
		return errors.Newf("sample shading must be within [0, 1], got %g", c.SampleShading)
	case c.View.Camera.Near <= 0:
		return errors.Newf("near plane must be positive, got %g", c.View.Camera.Near)
	case c.View.Camera.Near >= c.View.Camera.Far:
		return errors.Newf("near plane %g is not in front of far plane %g", c.View.Camera.Near, c.View.Camera.Far)
	case c.View.Camera.FovY <= 0 || c.View.Camera.FovY >= 180:
		return errors.Newf("field of view %g is out of range", c.View.Camera.FovY)
	case c.View.Camera.Up.Len() == 0:
		return errors.New("camera up vector is zero")
	case c.View.Camera.Position.ApproxEqual(c.View.Camera.Center):
		return errors.New("camera position and center coincide")
	}
	return nil
}

// PolygonMode maps the wireframe flag to a fill mode.
func (c *RendererConfig) PolygonMode() vk.PolygonMode {
	if c.Wireframe {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}
