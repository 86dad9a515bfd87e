package voxel

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// CompressBlob compresses a raw voxel payload for storage in
// WorldObject.VoxelBlob, per spec §3's "optional voxel blob
// (compressed)". Grounded on the teacher's transitive use of
// klauspost/compress for on-wire compression, reused here for
// at-rest voxel data.
func CompressBlob(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressBlob reverses CompressBlob.
func DecompressBlob(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}
