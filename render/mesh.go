package render

import (
	"unsafe"

	"github.com/pkg/errors"
	lin "github.com/xlab/linmath"

	"github.com/andewx/vkframe/gpu"
)

// Vertex is the vertex layout every pipeline reads: position, texture coordinates and color.
type Vertex struct {
	Pos   [4]float32
	UV    [2]float32
	Color [4]float32
}

const vertexStride = uint32(unsafe.Sizeof(Vertex{}))

var vertexAttributes = []gpu.VertexAttribute{
	{Location: 0, Format: gpu.FormatR32G32B32A32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Pos))},
	{Location: 1, Format: gpu.FormatR32G32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.UV))},
	{Location: 2, Format: gpu.FormatR32G32B32A32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Color))},
}

// Mesh is CPU side geometry. A zero Transform is treated as identity.
type Mesh struct {
	Vertices   []Vertex
	Indices    []uint32
	Transform  lin.Mat4x4
	Projection Projection
}

// MeshHandle identifies a registered mesh.
type MeshHandle int

type registeredMesh struct {
	mesh     Mesh
	vertices hostBuffer
	indices  hostBuffer
}

func (m *Mesh) validate() error {
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return errors.Wrapf(ErrInvalidMesh, "%d vertices, %d indices", len(m.Vertices), len(m.Indices))
	}
	if m.Projection != Perspective && m.Projection != Orthographic {
		return errors.Wrapf(ErrInvalidMesh, "projection %d", m.Projection)
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return errors.Wrapf(ErrInvalidMesh, "index %d is %d, have %d vertices", i, idx, len(m.Vertices))
		}
	}
	return nil
}

func vertexBytes(v []Vertex) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v))), len(v)*int(vertexStride))
}

func indexBytes(idx []uint32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(idx))), len(idx)*4)
}

func uploadMesh(dev *Device, m Mesh) (*registeredMesh, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if m.Transform == (lin.Mat4x4{}) {
		m.Transform = identity()
	}
	// Keep private copies; the caller may reuse its slices.
	m.Vertices = append([]Vertex(nil), m.Vertices...)
	m.Indices = append([]uint32(nil), m.Indices...)

	rm := &registeredMesh{mesh: m}
	var err error
	if rm.vertices, err = dev.createHostBuffer(vertexBytes(m.Vertices), gpu.BufferUsageVertex); err != nil {
		return nil, errors.Wrap(err, "vertex buffer")
	}
	if rm.indices, err = dev.createHostBuffer(indexBytes(m.Indices), gpu.BufferUsageIndex); err != nil {
		rm.vertices.destroy(dev.gpu)
		return nil, errors.Wrap(err, "index buffer")
	}
	return rm, nil
}

func (rm *registeredMesh) destroy(dev gpu.Device) {
	rm.indices.destroy(dev)
	rm.vertices.destroy(dev)
}
