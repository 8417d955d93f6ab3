package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"mrilabelfusion/internal/volume"
	"mrilabelfusion/pkg/config"
	"mrilabelfusion/pkg/diagnostics"
	"mrilabelfusion/pkg/driver"
	"mrilabelfusion/pkg/fusion"
	"mrilabelfusion/pkg/geometry"
	"mrilabelfusion/pkg/patch"
	"mrilabelfusion/pkg/rawio"
)

func main() {
	targetPath := flag.String("target", "", "Path to the target intensity volume (rawio format)")
	atlasList := flag.String("atlases", "", "Comma-separated list of atlasIntensity:atlasLabel path pairs")
	outputPath := flag.String("output", "output.vol", "Output label volume path")
	configPath := flag.String("config", "", "Path to a YAML configuration file (defaults are used if omitted)")
	weightMapPrefix := flag.String("weight-maps-prefix", "", "If set, write one weight-map volume per atlas under this prefix")
	numCores := flag.Int("cores", runtime.NumCPU(), "Number of CPU cores to use")
	sliceExportDir := flag.String("slice-export-dir", "", "If set, export a PNG cross-section sequence of the fused output into this directory")
	sliceAxis := flag.String("slice-axis", "z", "Axis for -slice-export-dir (x, y, or z)")
	agreementReference := flag.String("agreement-reference", "", "Path to a reference label volume to compare the fused output against")
	weightPreviewStride := flag.Int("weight-preview-stride", 0, "If > 0, log a kriging reconstruction-error preview of each atlas weight map's mid-depth slice, sampled at this stride (requires -weight-maps-prefix)")
	flag.Parse()

	if *targetPath == "" || *atlasList == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}

	fmt.Println("================================")
	fmt.Println("MULTI-ATLAS WEIGHTED-VOTING LABEL FUSION")
	fmt.Println("================================")

	target, err := rawio.LoadImage3D(*targetPath)
	if err != nil {
		log.Fatalf("Failed to load target volume: %v", err)
	}

	atlases, err := loadAtlases(*atlasList)
	if err != nil {
		log.Fatalf("Failed to load atlases: %v", err)
	}

	signMode := patch.PenalizeAnticorrelation
	if strings.EqualFold(cfg.Experimental.SignMode, "symmetric") {
		signMode = patch.SymmetricCorrelation
	}

	params := driver.Params{
		Fusion: fusion.Params{
			PatchRadius: geometry.Radius{
				X: cfg.Processing.PatchRadiusX,
				Y: cfg.Processing.PatchRadiusY,
				Z: cfg.Processing.PatchRadiusZ,
			},
			SearchRadius: geometry.Radius{
				X: cfg.Processing.SearchRadiusX,
				Y: cfg.Processing.SearchRadiusY,
				Z: cfg.Processing.SearchRadiusZ,
			},
			Alpha:              cfg.Processing.Alpha,
			Beta:               cfg.Processing.Beta,
			GenerateWeightMaps: cfg.Diagnostics.GenerateWeightMaps || *weightMapPrefix != "",
			RetainPosteriors:   cfg.Diagnostics.RetainPosteriors,
			SignMode:           signMode,
		},
		NumWorkers: cfg.Processing.NumCores,
		Progress: func(completed, total int, message string) {
			if cfg.Output.Verbose {
				fmt.Printf("\r%s: %d/%d voxels", message, completed, total)
			}
		},
	}

	fmt.Printf("Fusing %d atlases onto a %dx%dx%d target using %d cores...\n",
		len(atlases), target.X, target.Y, target.Z, cfg.Processing.NumCores)

	start := time.Now()
	result, err := driver.Run(context.Background(), target, atlases, nil, toDriverParams(params, cfg))
	if err != nil {
		log.Fatalf("Fusion failed: %v", err)
	}
	elapsed := time.Since(start)

	if cfg.Output.Verbose {
		fmt.Println()
	}
	fmt.Printf("Fusion completed in %.2f seconds\n", elapsed.Seconds())

	if err := rawio.SaveImage3D(*outputPath, result.Output); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	fmt.Printf("Output label volume saved to: %s\n", *outputPath)

	if *weightMapPrefix != "" && result.WeightMaps != nil {
		var edges *diagnostics.EdgeTransform
		if cfg.Diagnostics.SmoothWeightMaps {
			edges = diagnostics.NewEdgeTransform(3)
		}

		for i, wm := range result.WeightMaps {
			toSave := wm
			if edges != nil {
				smoothed := diagnostics.SmoothWeightVolume(edges, wm)
				if corr := midSliceEdgeCorrelation(edges, wm, smoothed); !math.IsNaN(corr) {
					fmt.Printf("Weight map %d: smoothing preserved %.1f%% of edge structure at mid-depth\n", i, corr*100)
				}
				toSave = smoothed
			}

			path := fmt.Sprintf("%s_%d.vol", *weightMapPrefix, i)
			if err := rawio.SaveImage3D(path, toSave); err != nil {
				log.Printf("Warning: failed to write weight map %d: %v", i, err)
				continue
			}
			fmt.Printf("Weight map for atlas %d saved to: %s\n", i, path)
			fmt.Printf("Weight map %d: mid-depth spectral energy ratio (>Nyquist/2) = %.4f\n", i, midSliceSpectralRatio(wm))

			if *weightPreviewStride > 0 {
				logWeightMapPreview(i, wm, *weightPreviewStride)
			}
		}
	} else if *weightPreviewStride > 0 {
		log.Printf("Warning: -weight-preview-stride requires -weight-maps-prefix; skipping preview")
	}

	if cfg.Diagnostics.BoundaryMesh {
		exportBoundaryMeshes(*outputPath, result.Output)
	}

	if *agreementReference != "" {
		reference, err := rawio.LoadImage3D(*agreementReference)
		if err != nil {
			log.Printf("Warning: failed to load agreement reference: %v", err)
		} else if !result.Output.SameGrid(reference) {
			log.Printf("Warning: agreement reference grid does not match output grid; skipping")
		} else {
			indices := make([]int, len(result.Output.Data))
			for i := range indices {
				indices[i] = i
			}
			agreement := diagnostics.CompareLabels(result.Output, reference, indices)
			fmt.Printf("Agreement against reference: ratio=%.4f ssim=%.4f\n", agreement.AgreementRatio, agreement.SSIM)
		}
	}

	if *sliceExportDir != "" {
		exporter := diagnostics.NewSliceExporter(result.Output)
		if err := exporter.SaveSliceSequence(*sliceAxis, *sliceExportDir); err != nil {
			log.Printf("Warning: failed to export slice sequence: %v", err)
		} else {
			fmt.Printf("Slice sequence along axis %s saved to: %s\n", *sliceAxis, *sliceExportDir)
		}
	}

	fmt.Println("\nManhattan-distance histogram of best-match search offsets:")
	for d, count := range result.Histogram {
		if count > 0 {
			fmt.Printf("  distance %d: %d matches\n", d, count)
		}
	}
}

// midSliceEdgeCorrelation compares the shearlet edge map of a weight map's
// middle Z slice before and after smoothing, as a sanity check that
// smoothing hasn't washed out the structure it was meant to preserve.
func midSliceEdgeCorrelation(t *diagnostics.EdgeTransform, raw, smoothed *volume.Image3D) float64 {
	if raw.X != raw.Y {
		return math.NaN()
	}
	z := raw.Z / 2
	base := z * raw.StrideZ
	sliceLen := raw.X * raw.Y
	return diagnostics.EdgeCorrelation(t, raw.Data[base:base+sliceLen], smoothed.Data[base:base+sliceLen])
}

// midSliceSpectralRatio reports the fraction of a weight map's mid-depth
// slice's spectral energy lying above half Nyquist, a cheap noisiness proxy.
func midSliceSpectralRatio(wm *volume.Image3D) float64 {
	z := wm.Z / 2
	base := z * wm.StrideZ
	sliceLen := wm.X * wm.Y
	return diagnostics.SpectralEnergyRatio(wm.Data[base:base+sliceLen], wm.X, wm.Y)
}

// logWeightMapPreview reconstructs the weight map's middle Z slice from a
// strided sparse sample via kriging and logs the RMS error against the true
// slice, a proxy for how much spatial detail a coarse sample would lose.
func logWeightMapPreview(atlasIndex int, wm *volume.Image3D, stride int) {
	z := wm.Z / 2
	base := z * wm.StrideZ
	sliceLen := wm.X * wm.Y
	slice := wm.Data[base : base+sliceLen]

	preview := diagnostics.NewSparseWeightPreview(slice, wm.X, wm.Y, stride)
	reconstructed := preview.FullPreview(wm.X, wm.Y, 8)

	var sumSq float64
	for i, v := range reconstructed {
		d := v - slice[i]
		sumSq += d * d
	}
	rmse := math.Sqrt(sumSq / float64(len(slice)))
	fmt.Printf("Weight map %d: stride-%d kriging preview RMSE=%.6f at mid-depth\n", atlasIndex, stride, rmse)
}

// exportBoundaryMeshes writes one binary STL per unique label present in
// output, alongside outputPath.
func exportBoundaryMeshes(outputPath string, output *volume.Image3D) {
	labels := uniqueLabels(output)
	for _, label := range labels {
		triangles := diagnostics.BoundaryMesh(output, label)
		if len(triangles) == 0 {
			continue
		}
		area := diagnostics.MeshSurfaceArea(triangles)
		path := fmt.Sprintf("%s.label%g.stl", outputPath, label)
		if err := diagnostics.SaveToSTL(path, triangles); err != nil {
			log.Printf("Warning: failed to write boundary mesh for label %g: %v", label, err)
			continue
		}
		fmt.Printf("Boundary mesh for label %g saved to: %s (surface area %.2f)\n", label, path, area)
	}
}

// uniqueLabels returns the sorted set of distinct values in output.
func uniqueLabels(output *volume.Image3D) []float64 {
	seen := make(map[float64]struct{})
	for _, v := range output.Data {
		seen[v] = struct{}{}
	}
	labels := make([]float64, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Float64s(labels)
	return labels
}

// toDriverParams exists only so the memory budget, expressed in the config
// file's convenient megabytes, is converted to the driver's bytes.
func toDriverParams(p driver.Params, cfg *config.Config) driver.Params {
	p.MemoryBudgetBytes = cfg.Processing.MemoryBudgetMB * 1024 * 1024
	return p
}

func loadAtlases(spec string) ([]volume.AtlasPair, error) {
	pairs := strings.Split(spec, ",")
	atlases := make([]volume.AtlasPair, 0, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed atlas pair %q, expected intensityPath:labelPath", pair)
		}
		intensity, err := rawio.LoadImage3D(parts[0])
		if err != nil {
			return nil, err
		}
		label, err := rawio.LoadImage3D(parts[1])
		if err != nil {
			return nil, err
		}
		atlases = append(atlases, volume.AtlasPair{Intensity: intensity, Label: label})
	}
	return atlases, nil
}
