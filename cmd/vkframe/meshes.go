package main

import (
	lin "github.com/xlab/linmath"

	"github.com/andewx/vkframe/render"
)

var cubeFaces = [6]struct {
	normal, u, v [3]float32
	color        [4]float32
}{
	{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}, [4]float32{0.9, 0.3, 0.3, 1}},
	{[3]float32{0, 0, -1}, [3]float32{-1, 0, 0}, [3]float32{0, 1, 0}, [4]float32{0.3, 0.9, 0.3, 1}},
	{[3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}, [4]float32{0.3, 0.3, 0.9, 1}},
	{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}, [4]float32{0.9, 0.9, 0.3, 1}},
	{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [4]float32{0.3, 0.9, 0.9, 1}},
	{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}, [4]float32{0.9, 0.3, 0.9, 1}},
}

// cubeMesh is a unit cube centered at the origin with one color per face.
func cubeMesh() render.Mesh {
	var m render.Mesh
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range cubeFaces {
		base := uint32(len(m.Vertices))
		for _, c := range corners {
			var pos [4]float32
			for i := 0; i < 3; i++ {
				pos[i] = 0.5 * (f.normal[i] + c[0]*f.u[i] + c[1]*f.v[i])
			}
			pos[3] = 1
			m.Vertices = append(m.Vertices, render.Vertex{
				Pos:   pos,
				UV:    [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2},
				Color: f.color,
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	m.Projection = render.Perspective
	return m
}

// quadMesh is a textured overlay quad drawn with the orthographic projection.
func quadMesh() render.Mesh {
	white := [4]float32{1, 1, 1, 1}
	m := render.Mesh{
		Vertices: []render.Vertex{
			{Pos: [4]float32{-0.5, -0.5, 0, 1}, UV: [2]float32{0, 1}, Color: white},
			{Pos: [4]float32{0.5, -0.5, 0, 1}, UV: [2]float32{1, 1}, Color: white},
			{Pos: [4]float32{0.5, 0.5, 0, 1}, UV: [2]float32{1, 0}, Color: white},
			{Pos: [4]float32{-0.5, 0.5, 0, 1}, UV: [2]float32{0, 0}, Color: white},
		},
		Indices:    []uint32{0, 1, 2, 2, 3, 0},
		Projection: render.Orthographic,
	}
	m.Transform.Translate(1.5, 0, 0)
	return m
}

func demoMeshes() []render.Mesh {
	cube := cubeMesh()
	var rot lin.Mat4x4
	rot.Identity()
	cube.Transform.Rotate(&rot, 0, 1, 0, lin.DegreesToRadians(30))
	return []render.Mesh{cube, quadMesh()}
}
