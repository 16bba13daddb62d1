package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/surveyth/cadastre-engine/internal/export"
	"github.com/surveyth/cadastre-engine/internal/geodesy"
)

var exportCmd = &cobra.Command{
	Use:   "export <folder>",
	Short: "Reproject verified records into GeoPackage layers",
	Long: `Export finds every <base>_OCRedit.toml under the folder, reprojects the
verified marker records from the deed's survey datum, and writes two
feature layers per container: marker points and the closed parcel polygon.

The WGS84 container <prefix>_W84.gpkg is always written; --src-crs also
writes <prefix>_SRC.gpkg in the source datum. Parcels with fewer than
three verified points are skipped and reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := appConfig()
	if err != nil {
		return err
	}

	opts := export.Options{}
	opts.Prefix, _ = cmd.Flags().GetString("gpkg-prefix")
	opts.WriteSourceCRS, _ = cmd.Flags().GetBool("src-crs")
	opts.SummaryReport, _ = cmd.Flags().GetBool("summary")
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = args[0]
	}

	exporter := export.New(geodesy.NewFactory(cfg.Meta.TOWGS84), cfg)
	summary, err := exporter.Run(args[0], outDir, opts, os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d parcel(s) failed export", summary.Failed)
	}
	return nil
}

func init() {
	exportCmd.Flags().String("out", "", "output directory (default: the scans folder)")
	exportCmd.Flags().String("gpkg-prefix", "", "output file prefix (overrides export.prefix)")
	exportCmd.Flags().Bool("src-crs", true, "also write the source-datum container")
	exportCmd.Flags().Bool("summary", false, "write a <prefix>_summary.yaml run report")

	rootCmd.AddCommand(exportCmd)
}
