// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export turns verified deed files into GeoPackage layers. It walks
// a folder for _OCRedit.toml files, reprojects each parcel's markers, and
// writes one polygon and one point feature set per parcel. Parcels that
// cannot form a polygon are skipped with a warning; the batch continues.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/surveyth/cadastre-engine/internal/deedfile"
	"github.com/surveyth/cadastre-engine/internal/geodesy"
	"github.com/surveyth/cadastre-engine/internal/gpkg"
	"github.com/surveyth/cadastre-engine/pkg/types"
)

// minRingPoints is the smallest number of distinct verified markers that
// close into a polygon.
const minRingPoints = 3

// TransformerFactory builds coordinate transformations per source EPSG.
// *geodesy.Factory is the production implementation.
type TransformerFactory interface {
	ToWGS84(srcEPSG int) (geodesy.Transformer, error)
	ToWGS84UTM(srcEPSG int) (geodesy.Transformer, error)
}

// Summary holds counts from an export run.
type Summary struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// Total returns the number of deed files processed.
func (s Summary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed
}

// HasFailures reports whether any parcel failed to export.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// parcelReport is one line of the optional YAML run report.
type parcelReport struct {
	Parcel string `yaml:"parcel"`
	File   string `yaml:"file"`
	Status string `yaml:"status"`
	Reason string `yaml:"reason,omitempty"`
	Points int    `yaml:"points,omitempty"`
}

type runReport struct {
	Output    string         `yaml:"output"`
	SourceCRS string         `yaml:"source_crs,omitempty"`
	TargetCRS string         `yaml:"target_crs,omitempty"`
	Succeeded int            `yaml:"succeeded"`
	Skipped   int            `yaml:"skipped"`
	Failed    int            `yaml:"failed"`
	Parcels   []parcelReport `yaml:"parcels"`
}

// Options control an export run.
type Options struct {
	// Prefix names the output files: <prefix>_W84.gpkg and, with
	// WriteSourceCRS, <prefix>_SRC.gpkg.
	Prefix string
	// WriteSourceCRS also emits an untransformed container in the deeds'
	// own datum.
	WriteSourceCRS bool
	// SummaryReport writes <prefix>_summary.yaml next to the output.
	SummaryReport bool
}

// Exporter reprojects edited deed files into GeoPackages.
type Exporter struct {
	factory TransformerFactory
	cfg     types.Config
}

// New returns an Exporter using the given transformation factory.
func New(factory TransformerFactory, cfg types.Config) *Exporter {
	return &Exporter{factory: factory, cfg: cfg}
}

// Run exports every _OCRedit.toml under folder into outDir, writing
// per-parcel status lines to w.
func (e *Exporter) Run(folder, outDir string, opts Options, w io.Writer) (Summary, error) {
	files, err := deedfile.DiscoverEdited(folder)
	if err != nil {
		return Summary{}, fmt.Errorf("discovering edited deed files: %w", err)
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("no %s files under %s", deedfile.EditSuffix, folder)
	}
	if opts.Prefix == "" {
		opts.Prefix = e.cfg.Export.Prefix
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating output directory: %w", err)
	}

	// The container SRS is fixed by the first exportable parcel; deeds in a
	// datum that maps to a different target zone fail individually.
	var (
		summary  Summary
		reports  []parcelReport
		w84      *gpkg.Writer
		src      *gpkg.Writer
		targetID int
		sourceID int
		w84Path  = filepath.Join(outDir, opts.Prefix+"_W84.gpkg")
		srcPath  = filepath.Join(outDir, opts.Prefix+"_SRC.gpkg")
	)
	defer func() {
		if w84 != nil {
			w84.Close()
		}
		if src != nil {
			src.Close()
		}
	}()

	for _, path := range files {
		report := parcelReport{File: path}
		parcel, err := deedfile.Load(path, e.cfg.Deed.EPSG)
		if err != nil {
			summary.Failed++
			report.Status = "failed"
			report.Reason = err.Error()
			reports = append(reports, report)
			fmt.Fprintf(w, "failed: %s (%v)\n", path, err)
			continue
		}
		report.Parcel = parcel.ID

		verified := parcel.VerifiedMarkers()
		if len(verified) < minRingPoints {
			summary.Skipped++
			report.Status = "skipped"
			report.Reason = fmt.Sprintf("%d verified points, need %d", len(verified), minRingPoints)
			reports = append(reports, report)
			fmt.Fprintf(w, "skipped: %s (%s)\n", path, report.Reason)
			continue
		}

		target, err := geodesy.WGS84UTM(parcel.EPSG)
		if err != nil {
			summary.Failed++
			report.Status = "failed"
			report.Reason = err.Error()
			reports = append(reports, report)
			fmt.Fprintf(w, "failed: %s (%v)\n", path, err)
			continue
		}

		if w84 == nil {
			targetID = target
			sourceID = parcel.EPSG
			w84, err = gpkg.Create(w84Path, e.srsFor(targetID))
			if err != nil {
				return summary, err
			}
			if opts.WriteSourceCRS {
				src, err = gpkg.Create(srcPath, e.srsFor(sourceID))
				if err != nil {
					return summary, err
				}
			}
		}
		if target != targetID {
			summary.Failed++
			report.Status = "failed"
			report.Reason = fmt.Sprintf("datum EPSG:%d maps to EPSG:%d, container is EPSG:%d", parcel.EPSG, target, targetID)
			reports = append(reports, report)
			fmt.Fprintf(w, "failed: %s (%s)\n", path, report.Reason)
			continue
		}

		if err := e.exportParcel(parcel, path, w84, src); err != nil {
			summary.Failed++
			report.Status = "failed"
			report.Reason = err.Error()
			reports = append(reports, report)
			fmt.Fprintf(w, "failed: %s (%v)\n", path, err)
			continue
		}

		summary.Succeeded++
		report.Status = "exported"
		report.Points = len(verified)
		reports = append(reports, report)
		fmt.Fprintf(w, "exported: %s (%d points)\n", path, len(verified))
	}

	fmt.Fprintf(w, "Export summary: %d exported, %d skipped, %d failed (total %d)\n",
		summary.Succeeded, summary.Skipped, summary.Failed, summary.Total())
	if summary.Succeeded > 0 {
		fmt.Fprintf(w, "wrote %s\n", w84Path)
		if opts.WriteSourceCRS {
			fmt.Fprintf(w, "wrote %s\n", srcPath)
		}
	}

	if opts.SummaryReport {
		rep := runReport{
			Output:    w84Path,
			Succeeded: summary.Succeeded,
			Skipped:   summary.Skipped,
			Failed:    summary.Failed,
			Parcels:   reports,
		}
		if targetID != 0 {
			rep.TargetCRS = geodesy.DatumName(targetID)
		}
		if opts.WriteSourceCRS && sourceID != 0 {
			rep.SourceCRS = geodesy.DatumName(sourceID)
		}
		if err := writeReport(filepath.Join(outDir, opts.Prefix+"_summary.yaml"), rep); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// exportParcel reprojects one parcel and writes it to the open containers.
func (e *Exporter) exportParcel(p *types.Parcel, path string, w84, src *gpkg.Writer) error {
	tr, err := e.factory.ToWGS84UTM(p.EPSG)
	if err != nil {
		return fmt.Errorf("building transformation: %w", err)
	}

	verified := p.VerifiedMarkers()
	feature := gpkg.ParcelFeature{
		ParcelID:   p.ID,
		Office:     p.Office,
		SurveyType: p.SurveyType,
		SourceFile: filepath.Base(path),
	}
	for _, m := range verified {
		x, y, err := tr.Transform(m.Easting, m.Northing)
		if err != nil {
			return fmt.Errorf("point %s: %w", m.PointID, err)
		}
		feature.Points = append(feature.Points, gpkg.Point{
			PointID: m.PointID, Label: m.Label, X: x, Y: y,
		})
	}
	for _, c := range p.Ring() {
		x, y, err := tr.Transform(c[0], c[1])
		if err != nil {
			return fmt.Errorf("ring vertex: %w", err)
		}
		feature.Ring = append(feature.Ring, [2]float64{x, y})
	}
	if err := w84.WriteParcel(feature); err != nil {
		return err
	}

	if src == nil {
		return nil
	}
	srcFeature := gpkg.ParcelFeature{
		ParcelID:   p.ID,
		Office:     p.Office,
		SurveyType: p.SurveyType,
		SourceFile: filepath.Base(path),
		Ring:       p.Ring(),
	}
	for _, m := range verified {
		srcFeature.Points = append(srcFeature.Points, gpkg.Point{
			PointID: m.PointID, Label: m.Label, X: m.Easting, Y: m.Northing,
		})
	}
	return src.WriteParcel(srcFeature)
}

func (e *Exporter) srsFor(epsg int) gpkg.SRS {
	return gpkg.SRS{
		ID:         epsg,
		Name:       geodesy.DatumName(epsg),
		Definition: geodesy.Definition(epsg, e.cfg.Meta.TOWGS84),
	}
}

func writeReport(path string, rep runReport) error {
	data, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	return nil
}
