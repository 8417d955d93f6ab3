package main

import (
	"path/filepath"
	"testing"

	"mrilabelfusion/internal/volume"
	"mrilabelfusion/pkg/rawio"
)

func writeTestVolume(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	img := volume.NewImage3D(2, 2, 2)
	if err := rawio.SaveImage3D(path, img); err != nil {
		t.Fatalf("SaveImage3D: %v", err)
	}
	return path
}

func TestLoadAtlasesParsesPairs(t *testing.T) {
	dir := t.TempDir()
	i1 := writeTestVolume(t, dir, "i1.vol")
	l1 := writeTestVolume(t, dir, "l1.vol")
	i2 := writeTestVolume(t, dir, "i2.vol")
	l2 := writeTestVolume(t, dir, "l2.vol")

	atlases, err := loadAtlases(i1 + ":" + l1 + "," + i2 + ":" + l2)
	if err != nil {
		t.Fatalf("loadAtlases: %v", err)
	}
	if len(atlases) != 2 {
		t.Fatalf("len(atlases) = %d, want 2", len(atlases))
	}
}

func TestLoadAtlasesRejectsMalformedPair(t *testing.T) {
	_, err := loadAtlases("onlyonepath")
	if err == nil {
		t.Error("expected an error for a pair missing the intensity:label separator")
	}
}

func TestLoadAtlasesPropagatesMissingFile(t *testing.T) {
	dir := t.TempDir()
	label := writeTestVolume(t, dir, "l.vol")
	_, err := loadAtlases(filepath.Join(dir, "missing.vol") + ":" + label)
	if err == nil {
		t.Error("expected an error when the intensity file does not exist")
	}
}
