package domain

import "github.com/glaretechnologies/substrata-sub005/internal/store"

// Vec3d is a plain double-precision 3-vector, used for camera position
// and orientation fields on Photo and Screenshot.
type Vec3d struct {
	X, Y, Z float64
}

func writeVec3d(pw *store.PayloadWriter, v Vec3d) {
	pw.F64(v.X)
	pw.F64(v.Y)
	pw.F64(v.Z)
}

func readVec3d(pr *store.PayloadReader) Vec3d {
	return Vec3d{X: pr.F64(), Y: pr.F64(), Z: pr.F64()}
}
