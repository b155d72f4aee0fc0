// Package sdlwindow provides an SDL2 window usable as a vkg surface.
package sdlwindow

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vkg "github.com/srwxr-xr-x/AgnosiaEngine"
	"github.com/veandco/go-sdl2/sdl"
	vk "github.com/vulkan-go/vulkan"
)

// KeyHandler is called for every key press.
type KeyHandler func(key sdl.Keycode)

// Window is an SDL window created with the vulkan flag.
type Window struct {
	Window *sdl.Window

	closed  bool
	resized []func(width, height int)
	keys    []KeyHandler
}

var _ vkg.WindowSurface = (*Window)(nil)

// New initializes SDL video and opens a resizable vulkan window.
func New(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initialize sdl")
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.WithHint(errors.Wrap(err, "load vulkan library"),
			"install a vulkan loader and driver")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}
	return &Window{Window: window}, nil
}

func (w *Window) OnResize(fn func(width, height int)) {
	w.resized = append(w.resized, fn)
}

func (w *Window) OnKey(fn KeyHandler) {
	w.keys = append(w.keys, fn)
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closed = true
	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			width, height := w.FramebufferSize()
			for _, fn := range w.resized {
				fn(width, height)
			}
		}
	case *sdl.KeyboardEvent:
		if e.Type != sdl.KEYDOWN {
			return
		}
		for _, fn := range w.keys {
			fn(e.Keysym.Sym)
		}
	}
}

// PollEvents handles every pending event without blocking.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
}

// WaitEvents blocks for one event, then drains the queue.
func (w *Window) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		w.handle(event)
	}
	w.PollEvents()
}

func (w *Window) ShouldClose() bool {
	return w.closed
}

// FramebufferSize is the drawable size in pixels. A minimized window reports 0x0.
func (w *Window) FramebufferSize() (int, int) {
	if w.Window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	width, height := w.Window.VulkanGetDrawableSize()
	return int(width), int(height)
}

func (w *Window) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.Window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := w.Window.VulkanCreateSurface(instance)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create sdl vulkan surface")
	}
	return vk.SurfaceFromPointer(uintptr(surface)), nil
}

func (w *Window) Destroy() {
	_ = w.Window.Destroy()
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
}
