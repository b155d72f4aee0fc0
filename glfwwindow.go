package vkg

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// InputHandler receives window input. Returning true stops the event from
// reaching handlers added after it.
type InputHandler interface {
	KeyChange(key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) bool
	MouseButtonChange(button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) bool
	MouseScrollChange(x, y float64) bool
	CharChange(char rune) bool
}

// GLFWWindow is a glfw window without a client API, usable as a vulkan surface.
type GLFWWindow struct {
	Window *glfw.Window

	handlers []InputHandler
	resized  []func(width, height int)
}

var _ WindowSurface = (*GLFWWindow)(nil)

// NewGLFWWindow initializes glfw and opens a window. glfw must be driven from
// the main thread, so the calling goroutine is locked to its OS thread.
func NewGLFWWindow(title string, width, height int) (*GLFWWindow, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.WithHint(errors.New("glfw reports vulkan as unsupported"),
			"install a vulkan loader and driver")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create window")
	}

	w := &GLFWWindow{Window: window}
	window.SetFramebufferSizeCallback(w.framebufferSizeChange)
	window.SetKeyCallback(w.keyChange)
	window.SetMouseButtonCallback(w.mouseButtonChange)
	window.SetScrollCallback(w.mouseScrollChange)
	window.SetCharCallback(w.charChange)
	return w, nil
}

// OnResize registers fn to run whenever the framebuffer changes size.
func (w *GLFWWindow) OnResize(fn func(width, height int)) {
	w.resized = append(w.resized, fn)
}

func (w *GLFWWindow) AddInputHandler(h InputHandler) {
	w.handlers = append(w.handlers, h)
}

func (w *GLFWWindow) framebufferSizeChange(_ *glfw.Window, width, height int) {
	for _, fn := range w.resized {
		fn(width, height)
	}
}

func (w *GLFWWindow) keyChange(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	for _, h := range w.handlers {
		if h.KeyChange(key, scancode, action, mods) {
			return
		}
	}
}

func (w *GLFWWindow) mouseButtonChange(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	for _, h := range w.handlers {
		if h.MouseButtonChange(button, action, mods) {
			return
		}
	}
}

func (w *GLFWWindow) mouseScrollChange(_ *glfw.Window, x, y float64) {
	for _, h := range w.handlers {
		if h.MouseScrollChange(x, y) {
			return
		}
	}
}

func (w *GLFWWindow) charChange(_ *glfw.Window, char rune) {
	for _, h := range w.handlers {
		if h.CharChange(char) {
			return
		}
	}
}

func (w *GLFWWindow) FramebufferSize() (int, int) {
	return w.Window.GetFramebufferSize()
}

func (w *GLFWWindow) WaitEvents() {
	glfw.WaitEvents()
}

func (w *GLFWWindow) PollEvents() {
	glfw.PollEvents()
}

func (w *GLFWWindow) ShouldClose() bool {
	return w.Window.ShouldClose()
}

func (w *GLFWWindow) ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (w *GLFWWindow) RequiredInstanceExtensions() []string {
	return w.Window.GetRequiredInstanceExtensions()
}

func (w *GLFWWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := w.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

// Destroy closes the window and terminates glfw.
func (w *GLFWWindow) Destroy() {
	w.Window.Destroy()
	glfw.Terminate()
}
