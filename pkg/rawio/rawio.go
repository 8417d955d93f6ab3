// Package rawio provides the thin binary loader/writer the command-line
// driver uses to move Image3D buffers to and from disk. Full image-format
// parsing (DICOM, NIfTI, and friends) is an external collaborator's
// concern; this package only understands the fusion engine's own flat
// on-disk representation.
package rawio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"mrilabelfusion/internal/volume"
)

// magic identifies the file format: extents, origin, spacing, orientation, then
// X*Y*Z little-endian float64 samples in row-major (StrideX=1) order.
const magic uint32 = 0x4d524c46 // "MRLF"

// SaveImage3D writes img to path in the package's flat binary format.
func SaveImage3D(path string, img *volume.Image3D) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rawio: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := []any{
		magic,
		int32(img.X), int32(img.Y), int32(img.Z),
		img.OriginX, img.OriginY, img.OriginZ,
		img.SpacingX, img.SpacingY, img.SpacingZ,
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("rawio: write header: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, img.Orientation); err != nil {
		return fmt.Errorf("rawio: write orientation: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, img.Data); err != nil {
		return fmt.Errorf("rawio: write samples: %w", err)
	}
	return w.Flush()
}

// LoadImage3D reads an Image3D previously written by SaveImage3D.
func LoadImage3D(path string) (*volume.Image3D, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rawio: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var gotMagic uint32
	if err := binary.Read(r, binary.LittleEndian, &gotMagic); err != nil {
		return nil, fmt.Errorf("rawio: read magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("rawio: %s is not a mrilabelfusion volume", path)
	}

	var x, y, z int32
	for _, dst := range []*int32{&x, &y, &z} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("rawio: read extents: %w", err)
		}
	}

	img := volume.NewImage3D(int(x), int(y), int(z))

	for _, dst := range []*float64{&img.OriginX, &img.OriginY, &img.OriginZ, &img.SpacingX, &img.SpacingY, &img.SpacingZ} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("rawio: read grid metadata: %w", err)
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &img.Orientation); err != nil {
		return nil, fmt.Errorf("rawio: read orientation: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, img.Data); err != nil && err != io.EOF {
		return nil, fmt.Errorf("rawio: read samples: %w", err)
	}

	return img, nil
}
