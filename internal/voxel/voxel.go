// Package voxel implements the greedy voxel mesher of spec §4.8: a
// deterministic conversion of a sparse voxel set into a minimal
// triangle mesh with correct per-triangle material assignment.
// Grounded on ec/manager.go's dense-array, slice-indexed processing
// style (the teacher's own costliest per-slice algorithm) for the
// "iterate axis, then slice, then row" traversal order.
package voxel

import (
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

// maxSpan is the largest permitted extent along any axis (2^16),
// beyond which a model is rejected outright rather than meshed.
const maxSpan = 1 << 16

// Vec3i is an integer voxel-grid coordinate.
type Vec3i struct{ X, Y, Z int32 }

// Voxel is one sparse input cell: a grid position and a material
// index. 255 is reserved to mean "empty" and must not be used as a
// real material index.
type Voxel struct {
	Pos Vec3i
	Mat uint8
}

const emptyMat = 255

// Vertex is a deduplicated mesh corner in mesh-local units (voxel
// grid units scaled by the subsample factor).
type Vertex struct{ X, Y, Z float32 }

// Mesh is the mesher's deterministic output: a vertex buffer, a
// triangle index buffer (3 indices per triangle), and one material
// index per triangle.
type Mesh struct {
	Vertices    []Vertex
	Indices     []uint32
	TriMaterial []uint8
	AABBMin     Vec3i
	AABBMax     Vec3i
}

// NumTriangles returns len(Indices)/3.
func (m *Mesh) NumTriangles() int { return len(m.Indices) / 3 }

// NumQuads returns the number of greedy quads emitted (two triangles
// each).
func (m *Mesh) NumQuads() int { return m.NumTriangles() / 2 }

// BuildMesh runs the algorithm of spec §4.8 over voxels. subsample,
// if greater than 1, coarsens the grid by integer-dividing every
// coordinate by subsample before meshing (mirroring the client's
// optional LOD reduction); pass 1 for full resolution. transparent is
// indexed by material id and marks which materials do not occlude a
// neighbour of a different material.
func BuildMesh(voxels []Voxel, subsample int32, transparent []bool) (*Mesh, error) {
	if len(voxels) == 0 {
		return &Mesh{}, nil
	}
	if subsample < 1 {
		subsample = 1
	}

	minX, minY, minZ := int32(1<<31-1), int32(1<<31-1), int32(1<<31-1)
	maxX, maxY, maxZ := -minX, -minY, -minZ
	coords := make([]Vec3i, len(voxels))
	for i, v := range voxels {
		p := Vec3i{floorDiv(v.Pos.X, subsample), floorDiv(v.Pos.Y, subsample), floorDiv(v.Pos.Z, subsample)}
		coords[i] = p
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Z < minZ {
			minZ = p.Z
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
		if p.Z > maxZ {
			maxZ = p.Z
		}
	}

	spanX := int64(maxX) - int64(minX) + 1
	spanY := int64(maxY) - int64(minY) + 1
	spanZ := int64(maxZ) - int64(minZ) + 1
	if spanX > maxSpan || spanY > maxSpan || spanZ > maxSpan {
		return nil, werrors.Validation("voxel model span exceeds 2^16 on an axis: (%d,%d,%d)", spanX, spanY, spanZ)
	}
	dims := [3]int32{int32(spanX), int32(spanY), int32(spanZ)}

	dense := make([]uint8, spanX*spanY*spanZ)
	for i := range dense {
		dense[i] = emptyMat
	}
	for i, v := range voxels {
		p := coords[i]
		idx := int64(p.X-minX) + int64(p.Y-minY)*spanX + int64(p.Z-minZ)*spanX*spanY
		dense[idx] = v.Mat
	}

	at := func(x, y, z int32) uint8 {
		if x < 0 || y < 0 || z < 0 || x >= dims[0] || y >= dims[1] || z >= dims[2] {
			return emptyMat
		}
		return dense[int64(x)+int64(y)*spanX+int64(z)*spanX*spanY]
	}
	isTransparent := func(mat uint8) bool {
		return int(mat) < len(transparent) && transparent[mat]
	}

	b := &builder{
		dims:          dims,
		at:            at,
		isTransparent: isTransparent,
		subsample:     float32(subsample),
		small:         dims[0] <= 256 && dims[1] <= 256 && dims[2] <= 256,
		smallIndex:    make(map[uint32]uint32),
		largeIndex:    make(map[Vec3i]uint32),
	}
	for axis := 0; axis < 3; axis++ {
		b.meshAxis(axis)
	}

	return &Mesh{
		Vertices:    b.vertices,
		Indices:     b.indices,
		TriMaterial: b.triMaterial,
		AABBMin:     Vec3i{minX, minY, minZ},
		AABBMax:     Vec3i{maxX + 1, maxY + 1, maxZ + 1},
	}, nil
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// faceCell describes one cell of a 2D face-needed mask.
type faceCell struct {
	need bool
	mat  uint8
	dir  int8 // +1 or -1, the direction the quad's normal faces along the slice axis
}

type builder struct {
	dims          [3]int32
	at            func(x, y, z int32) uint8
	isTransparent func(mat uint8) bool
	subsample     float32

	small      bool
	smallIndex map[uint32]uint32
	largeIndex map[Vec3i]uint32

	vertices    []Vertex
	indices     []uint32
	triMaterial []uint8
}

// meshAxis handles one of the three traversal axes, per spec §4.8's
// fixed "axis 0 then 1 then 2" order.
func (b *builder) meshAxis(axis int) {
	pu := (axis + 1) % 3
	pv := (axis + 2) % 3
	dimU, dimV := b.dims[pu], b.dims[pv]

	get := func(a, u, v int32) uint8 {
		pos := [3]int32{}
		pos[axis] = a
		pos[pu] = u
		pos[pv] = v
		return b.at(pos[0], pos[1], pos[2])
	}

	mask := make([]faceCell, int(dimU)*int(dimV))
	for d := int32(0); d <= b.dims[axis]; d++ {
		for i := range mask {
			mask[i] = faceCell{}
		}
		for u := int32(0); u < dimU; u++ {
			for v := int32(0); v < dimV; v++ {
				cur := get(d-1, u, v)
				next := get(d, u, v)
				cell := faceNeeded(cur, next, b.isTransparent)
				mask[int(u)*int(dimV)+int(v)] = cell
			}
		}
		b.extractQuads(mask, dimU, dimV, axis, pu, pv, d)
	}
}

// faceNeeded implements spec §4.8 step 3's face rule for one boundary
// between cur (the voxel below, along the slice axis) and next (the
// voxel at or above the boundary).
func faceNeeded(cur, next uint8, isTransparent func(uint8) bool) faceCell {
	curSolid := cur != emptyMat
	nextSolid := next != emptyMat
	switch {
	case !curSolid && nextSolid:
		return faceCell{need: true, mat: next, dir: -1}
	case curSolid && !nextSolid:
		return faceCell{need: true, mat: cur, dir: +1}
	case curSolid && nextSolid && cur != next:
		curTrans := isTransparent(cur)
		nextTrans := isTransparent(next)
		switch {
		case nextTrans && !curTrans:
			return faceCell{need: true, mat: cur, dir: +1}
		case curTrans && !nextTrans:
			return faceCell{need: true, mat: next, dir: -1}
		}
	}
	return faceCell{}
}

// extractQuads runs greedy rectangle extraction over one slice's
// mask, per spec §4.8 step 4: grow along v first, then along u.
func (b *builder) extractQuads(mask []faceCell, dimU, dimV int32, axis, pu, pv int, d int32) {
	processed := make([]bool, len(mask))
	idxOf := func(u, v int32) int64 { return int64(u)*int64(dimV) + int64(v) }

	for u := int32(0); u < dimU; u++ {
		for v := int32(0); v < dimV; v++ {
			i := idxOf(u, v)
			if processed[i] || !mask[i].need {
				continue
			}
			m := mask[i]

			endV := v + 1
			for endV < dimV {
				j := idxOf(u, endV)
				if processed[j] || mask[j] != m {
					break
				}
				endV++
			}

			endU := u + 1
		rowGrow:
			for endU < dimU {
				for vv := v; vv < endV; vv++ {
					j := idxOf(endU, vv)
					if processed[j] || mask[j] != m {
						break rowGrow
					}
				}
				endU++
			}

			for uu := u; uu < endU; uu++ {
				for vv := v; vv < endV; vv++ {
					processed[idxOf(uu, vv)] = true
				}
			}

			b.emitQuad(axis, pu, pv, d, u, endU, v, endV, m.mat, m.dir)
		}
	}
}

// emitQuad appends one greedy rectangle's two triangles, deduplicating
// corner vertices via the overflow-bit (small models) or plain
// (large models) key.
func (b *builder) emitQuad(axis, pu, pv int, d, u0, u1, v0, v1 int32, mat uint8, dir int8) {
	corner := func(uu, vv int32) Vec3i {
		p := Vec3i{}
		set := func(axisIdx int, val int32) {
			switch axisIdx {
			case 0:
				p.X = val
			case 1:
				p.Y = val
			case 2:
				p.Z = val
			}
		}
		set(axis, d)
		set(pu, uu)
		set(pv, vv)
		return p
	}

	c00 := b.vertexIndexFor(corner(u0, v0))
	c10 := b.vertexIndexFor(corner(u1, v0))
	c11 := b.vertexIndexFor(corner(u1, v1))
	c01 := b.vertexIndexFor(corner(u0, v1))

	var tri [6]uint32
	if dir > 0 {
		tri = [6]uint32{c00, c10, c11, c00, c11, c01}
	} else {
		tri = [6]uint32{c00, c01, c11, c00, c11, c10}
	}
	b.indices = append(b.indices, tri[:]...)
	b.triMaterial = append(b.triMaterial, mat, mat)
}

func (b *builder) vertexIndexFor(p Vec3i) uint32 {
	if b.small {
		key := smallVertexKey(p)
		if idx, ok := b.smallIndex[key]; ok {
			return idx
		}
		idx := uint32(len(b.vertices))
		b.vertices = append(b.vertices, Vertex{
			X: float32(p.X) * b.subsample,
			Y: float32(p.Y) * b.subsample,
			Z: float32(p.Z) * b.subsample,
		})
		b.smallIndex[key] = idx
		return idx
	}
	if idx, ok := b.largeIndex[p]; ok {
		return idx
	}
	idx := uint32(len(b.vertices))
	b.vertices = append(b.vertices, Vertex{
		X: float32(p.X) * b.subsample,
		Y: float32(p.Y) * b.subsample,
		Z: float32(p.Z) * b.subsample,
	})
	b.largeIndex[p] = idx
	return idx
}

// smallVertexKey packs a corner coordinate into a 4-byte key, per
// spec §4.8 step 5: each axis contributes one byte plus one overflow
// bit ("this coordinate reached the +1 boundary"), and a fourth
// "used" bit distinguishes the all-zero origin from an unused map
// slot. Only valid when every coordinate is in [0, 256].
func smallVertexKey(p Vec3i) uint32 {
	ox, bx := overflowByte(p.X)
	oy, by := overflowByte(p.Y)
	oz, bz := overflowByte(p.Z)
	flags := uint32(0x8) | ox | oy<<1 | oz<<2
	return uint32(bx) | uint32(by)<<8 | uint32(bz)<<16 | flags<<24
}

func overflowByte(v int32) (overflow uint32, b byte) {
	if v > 255 {
		return 1, byte(v - 256)
	}
	return 0, byte(v)
}
