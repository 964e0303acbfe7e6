package render

import (
	lin "github.com/xlab/linmath"

	"github.com/andewx/vkframe/gpu"
)

// Projection selects the camera projection a mesh is drawn with.
type Projection int

const (
	Perspective Projection = iota
	Orthographic
)

func (p Projection) String() string {
	switch p {
	case Perspective:
		return "perspective"
	case Orthographic:
		return "orthographic"
	}
	return "unknown"
}

// vulkanClip flips Y and maps depth from [-1, 1] to [0, 1]. Column major.
var vulkanClip = lin.Mat4x4{
	{1, 0, 0, 0},
	{0, -1, 0, 0},
	{0, 0, 0.5, 0},
	{0, 0, 0.5, 1},
}

// VulkanProjectionMat converts an OpenGL style projection matrix to Vulkan clip space.
// Vulkan has a top left origin and a [0, 1] depth range; linmath produces GL matrices.
func VulkanProjectionMat(m *lin.Mat4x4, proj *lin.Mat4x4) {
	var out lin.Mat4x4
	out.Mult(&vulkanClip, proj)
	*m = out
}

func identity() lin.Mat4x4 {
	return lin.Mat4x4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Camera holds the view matrix and both projections. Projections follow the swapchain
// extent: the perspective aspect ratio and the orthographic horizontal bounds.
type Camera struct {
	Eye, Center, Up lin.Vec3
	FovY            float32
	Near, Far       float32

	view         lin.Mat4x4
	perspective  lin.Mat4x4
	orthographic lin.Mat4x4
}

func NewCamera() *Camera {
	c := &Camera{
		Eye:    lin.Vec3{0, 3, 5},
		Center: lin.Vec3{0, 0, 0},
		Up:     lin.Vec3{0, 1, 0},
		FovY:   lin.DegreesToRadians(45),
		Near:   0.1,
		Far:    100,
	}
	c.SetExtent(gpu.Extent2D{Width: 1, Height: 1})
	return c
}

// SetExtent recomputes view and projections for a render area of extent.
func (c *Camera) SetExtent(extent gpu.Extent2D) {
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	c.view.LookAt(&c.Eye, &c.Center, &c.Up)

	var proj lin.Mat4x4
	proj.Perspective(c.FovY, aspect, c.Near, c.Far)
	VulkanProjectionMat(&c.perspective, &proj)
	proj.Ortho(-aspect, aspect, -1, 1, c.Near, c.Far)
	VulkanProjectionMat(&c.orthographic, &proj)
}

// Projection returns the Vulkan projection matrix of kind p.
func (c *Camera) Projection(p Projection) lin.Mat4x4 {
	if p == Orthographic {
		return c.orthographic
	}
	return c.perspective
}

func (c *Camera) View() lin.Mat4x4 {
	return c.view
}

// ProjectionView returns projection p times the view matrix.
func (c *Camera) ProjectionView(p Projection) lin.Mat4x4 {
	proj := c.Projection(p)
	var m lin.Mat4x4
	m.Mult(&proj, &c.view)
	return m
}
