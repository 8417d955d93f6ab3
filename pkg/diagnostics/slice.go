package diagnostics

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"mrilabelfusion/internal/volume"
)

// SliceExporter renders 2D cross-sections of a fused output, mask, or
// weight-map volume as grayscale images for visual inspection, normalizing
// the volume's own value range into the 16-bit output range rather than
// assuming pre-normalized [0,1] intensities.
type SliceExporter struct {
	vol      *volume.Image3D
	min, max float64
}

// NewSliceExporter scans vol once to find its value range for normalization.
func NewSliceExporter(vol *volume.Image3D) *SliceExporter {
	min, max := vol.Data[0], vol.Data[0]
	for _, v := range vol.Data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return &SliceExporter{vol: vol, min: min, max: max}
}

func (s *SliceExporter) normalize(v float64) uint16 {
	if s.max == s.min {
		return 0
	}
	n := (v - s.min) / (s.max - s.min)
	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	return uint16(n * 65535)
}

// ExtractSlice renders the 2D cross-section at position along axis ("x",
// "y", or "z") as a 16-bit grayscale image.
func (s *SliceExporter) ExtractSlice(axis string, position int) (image.Image, error) {
	v := s.vol

	switch axis {
	case "x", "X":
		if position < 0 || position >= v.X {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.X)
		}
		img := image.NewGray16(image.Rect(0, 0, v.Z, v.Y))
		for y := 0; y < v.Y; y++ {
			for z := 0; z < v.Z; z++ {
				idx := z*v.StrideZ + y*v.StrideY + position*v.StrideX
				img.SetGray16(z, y, color.Gray16{Y: s.normalize(v.Data[idx])})
			}
		}
		return img, nil

	case "y", "Y":
		if position < 0 || position >= v.Y {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.Y)
		}
		img := image.NewGray16(image.Rect(0, 0, v.X, v.Z))
		for z := 0; z < v.Z; z++ {
			for x := 0; x < v.X; x++ {
				idx := z*v.StrideZ + position*v.StrideY + x*v.StrideX
				img.SetGray16(x, z, color.Gray16{Y: s.normalize(v.Data[idx])})
			}
		}
		return img, nil

	case "z", "Z":
		if position < 0 || position >= v.Z {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.Z)
		}
		img := image.NewGray16(image.Rect(0, 0, v.X, v.Y))
		for y := 0; y < v.Y; y++ {
			for x := 0; x < v.X; x++ {
				idx := position*v.StrideZ + y*v.StrideY + x*v.StrideX
				img.SetGray16(x, y, color.Gray16{Y: s.normalize(v.Data[idx])})
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// SaveSlice writes img as a lossless PNG. Label volumes are discrete
// categorical values; a lossy codec like JPEG would corrupt them at label
// boundaries.
func (s *SliceExporter) SaveSlice(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// SaveSliceSequence writes every slice along axis into outputDir.
func (s *SliceExporter) SaveSliceSequence(axis, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var count int
	switch axis {
	case "x", "X":
		count = s.vol.X
	case "y", "Y":
		count = s.vol.Y
	case "z", "Z":
		count = s.vol.Z
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < count; pos++ {
		img, err := s.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := s.SaveSlice(img, filename); err != nil {
			return err
		}
	}
	return nil
}
