package vkg

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// PushConstantBlock is pushed once per draw. The layout matches a std430
// block of three mat4, three vec4, one uint and three floats, 256 bytes in total.
type PushConstantBlock struct {
	Model     mgl32.Mat4
	View      mgl32.Mat4
	Proj      mgl32.Mat4
	LightPos  mgl32.Vec4
	CameraPos mgl32.Vec4
	ObjectPos mgl32.Vec4

	TextureIndex uint32
	Ambient      float32
	Specular     float32
	Shininess    float32
}

// PushConstantSize is the size in bytes of PushConstantBlock.
const PushConstantSize = uint32(unsafe.Sizeof(PushConstantBlock{}))

// PushConstantStages are the stages which read PushConstantBlock.
var PushConstantStages = vk.ShaderStageFlags(vk.ShaderStageAllGraphics)

// Bytes aliases the block's memory. The slice is only valid while b is.
func (b *PushConstantBlock) Bytes() []byte {
	return ToBytes(unsafe.Pointer(b), int(PushConstantSize))
}

// Material holds the lighting terms and texture table index of one draw.
type Material struct {
	Ambient      float32
	Specular     float32
	Shininess    float32
	TextureIndex uint32
}

// DefaultMaterial matches the lighting defaults of the scene shaders.
func DefaultMaterial(textureIndex uint32) Material {
	return Material{Ambient: 0.1, Specular: 0.5, Shininess: 32, TextureIndex: textureIndex}
}

// DrawItem is one indexed draw. The recorder only borrows it for the
// duration of a single Record call.
type DrawItem struct {
	VertexBuffer vk.Buffer
	IndexBuffer  vk.Buffer
	IndexType    vk.IndexType
	IndexCount   uint32
	Transform    mgl32.Mat4
	Position     mgl32.Vec3
	Material     Material
}

// Camera is a perspective look-at camera. FovY is in degrees.
type Camera struct {
	Position mgl32.Vec3
	Center   mgl32.Vec3
	Up       mgl32.Vec3
	FovY     float32
	Near     float32
	Far      float32
}

func DefaultCamera() Camera {
	return Camera{
		Position: mgl32.Vec3{3, 3, 3},
		Center:   mgl32.Vec3{0, 0, 0},
		Up:       mgl32.Vec3{0, 0, 1},
		FovY:     45,
		Near:     0.1,
		Far:      100,
	}
}

// vulkanClip flips Y and maps depth from [-1,1] to [0,1].
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Center, c.Up)
}

// Projection returns the vulkan clip space projection for a target of the given extent.
func (c Camera) Projection(extent vk.Extent2D) mgl32.Mat4 {
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	return vulkanClip.Mul4(mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far))
}

// ViewParameters are the per frame inputs shared by every draw.
type ViewParameters struct {
	Camera Camera
	Light  mgl32.Vec3
}

func DefaultViewParameters() ViewParameters {
	return ViewParameters{Camera: DefaultCamera(), Light: mgl32.Vec3{5, 5, 5}}
}

// fill writes the frame wide fields of b.
func (v ViewParameters) fill(b *PushConstantBlock, extent vk.Extent2D) {
	b.View = v.Camera.View()
	b.Proj = v.Camera.Projection(extent)
	b.LightPos = v.Light.Vec4(1)
	b.CameraPos = v.Camera.Position.Vec4(1)
}

// fillItem writes the per draw fields of b.
func (b *PushConstantBlock) fillItem(item *DrawItem) {
	b.Model = item.Transform
	b.ObjectPos = item.Position.Vec4(1)
	b.TextureIndex = item.Material.TextureIndex
	b.Ambient = item.Material.Ambient
	b.Specular = item.Material.Specular
	b.Shininess = item.Material.Shininess
}
