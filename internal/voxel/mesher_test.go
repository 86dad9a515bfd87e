package voxel_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/glaretechnologies/substrata-sub005/internal/voxel"
)

var _ = Describe("BuildMesh", func() {
	noTransparent := []bool{false, false}
	oneTransparent := []bool{false, true}

	It("produces one 6-quad box for two adjacent same-material voxels", func() {
		voxels := []voxel.Voxel{
			{Pos: voxel.Vec3i{X: 0, Y: 0, Z: 0}, Mat: 0},
			{Pos: voxel.Vec3i{X: 1, Y: 0, Z: 0}, Mat: 0},
		}
		mesh, err := voxel.BuildMesh(voxels, 1, noTransparent)
		Expect(err).NotTo(HaveOccurred())
		Expect(mesh.NumQuads()).To(Equal(6))
		Expect(mesh.NumTriangles()).To(Equal(12))
		Expect(mesh.AABBMin).To(Equal(voxel.Vec3i{X: 0, Y: 0, Z: 0}))
		Expect(mesh.AABBMax).To(Equal(voxel.Vec3i{X: 2, Y: 1, Z: 1}))

		seen := map[uint8]bool{}
		for _, m := range mesh.TriMaterial {
			seen[m] = true
		}
		Expect(seen).To(HaveLen(1))
	})

	It("omits the shared face between two opaque different-material voxels", func() {
		voxels := []voxel.Voxel{
			{Pos: voxel.Vec3i{X: 0, Y: 0, Z: 0}, Mat: 0},
			{Pos: voxel.Vec3i{X: 1, Y: 0, Z: 0}, Mat: 1},
		}
		mesh, err := voxel.BuildMesh(voxels, 1, noTransparent)
		Expect(err).NotTo(HaveOccurred())
		Expect(mesh.NumQuads()).To(Equal(10))
		Expect(mesh.NumTriangles()).To(Equal(20))

		seen := map[uint8]bool{}
		for _, m := range mesh.TriMaterial {
			seen[m] = true
		}
		Expect(seen).To(HaveLen(2))
	})

	It("emits one opaque-carrying face between an opaque and a transparent voxel", func() {
		voxels := []voxel.Voxel{
			{Pos: voxel.Vec3i{X: 0, Y: 0, Z: 0}, Mat: 0},
			{Pos: voxel.Vec3i{X: 1, Y: 0, Z: 0}, Mat: 1},
		}
		mesh, err := voxel.BuildMesh(voxels, 1, oneTransparent)
		Expect(err).NotTo(HaveOccurred())
		Expect(mesh.NumQuads()).To(Equal(11))
		Expect(mesh.NumTriangles()).To(Equal(22))

		mat0Tris := 0
		for _, m := range mesh.TriMaterial {
			if m == 0 {
				mat0Tris++
			}
		}
		Expect(mat0Tris).To(Equal(12))
	})

	It("is deterministic across repeated runs on the same input", func() {
		voxels := []voxel.Voxel{
			{Pos: voxel.Vec3i{X: 0, Y: 0, Z: 0}, Mat: 0},
			{Pos: voxel.Vec3i{X: 1, Y: 0, Z: 0}, Mat: 1},
			{Pos: voxel.Vec3i{X: 0, Y: 1, Z: 0}, Mat: 0},
			{Pos: voxel.Vec3i{X: 0, Y: 0, Z: 1}, Mat: 1},
		}
		m1, err1 := voxel.BuildMesh(voxels, 1, oneTransparent)
		m2, err2 := voxel.BuildMesh(voxels, 1, oneTransparent)
		Expect(err1).NotTo(HaveOccurred())
		Expect(err2).NotTo(HaveOccurred())
		Expect(m1.Vertices).To(Equal(m2.Vertices))
		Expect(m1.Indices).To(Equal(m2.Indices))
		Expect(m1.TriMaterial).To(Equal(m2.TriMaterial))
	})

	It("rejects a voxel set spanning more than 2^16 on an axis", func() {
		voxels := []voxel.Voxel{
			{Pos: voxel.Vec3i{X: 0, Y: 0, Z: 0}, Mat: 0},
			{Pos: voxel.Vec3i{X: 1 << 16, Y: 0, Z: 0}, Mat: 0},
		}
		_, err := voxel.BuildMesh(voxels, 1, noTransparent)
		Expect(err).To(HaveOccurred())
	})

	It("returns an empty mesh for no input", func() {
		mesh, err := voxel.BuildMesh(nil, 1, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(mesh.Vertices).To(BeEmpty())
		Expect(mesh.Indices).To(BeEmpty())
	})
})

var _ = Describe("vertex key boundary behaviour", func() {
	It("distinguishes the +dim overflow corner from the origin of the next virtual cell", func() {
		voxels := make([]voxel.Voxel, 0, 256)
		for x := int32(0); x < 256; x++ {
			voxels = append(voxels, voxel.Voxel{Pos: voxel.Vec3i{X: x, Y: 0, Z: 0}, Mat: 0})
		}
		mesh, err := voxel.BuildMesh(voxels, 1, nil)
		Expect(err).NotTo(HaveOccurred())
		// A 256-long run of voxels merges into a single top/bottom/front/
		// back quad each plus two end caps: 6 quads total sharing the
		// box's 8 distinct corners, none colliding despite x=256 needing
		// the overflow bit.
		Expect(mesh.NumQuads()).To(Equal(6))

		uniqueCorners := map[voxel.Vertex]bool{}
		for _, v := range mesh.Vertices {
			uniqueCorners[v] = true
		}
		Expect(uniqueCorners).To(HaveLen(len(mesh.Vertices)))
	})
})
