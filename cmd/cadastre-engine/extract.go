package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surveyth/cadastre-engine/internal/extract"
	"github.com/surveyth/cadastre-engine/internal/ocr"
)

var extractCmd = &cobra.Command{
	Use:   "extract <folder>",
	Short: "OCR cropped coordinate tables into marker record files",
	Long: `Extract finds every <base>_table.jpg under the folder, runs OCR over it,
and writes the cleaned marker records next to it as <base>_OCR.toml. Rows
the cleaner cannot turn into plausible coordinates are kept and flagged
unverified, with the raw OCR text preserved for the editor.

Tables that already have an _OCR.toml are skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := appConfig()
	if err != nil {
		return err
	}
	if lang, _ := cmd.Flags().GetString("lang"); lang != "" {
		cfg.Extract.Language = lang
	}

	if list, _ := cmd.Flags().GetBool("list"); list {
		return extract.ListTables(args[0], cmd.OutOrStdout())
	}

	engine, err := ocr.NewEngine(cfg.Extract)
	if err != nil {
		return err
	}

	opts := extract.Options{}
	opts.Range, _ = cmd.Flags().GetString("range")
	opts.Force, _ = cmd.Flags().GetBool("force")

	summary, err := extract.ExtractBatch(cmd.Context(), engine, args[0], cfg, opts, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d table(s) failed extraction", summary.Failed)
	}
	return nil
}

func init() {
	extractCmd.Flags().Bool("list", false, "list discovered tables with their batch indices and exit")
	extractCmd.Flags().String("range", "", "process a 1-based inclusive slice of the table list (\"4,6\" or \"4\")")
	extractCmd.Flags().Bool("force", false, "re-extract tables whose _OCR.toml already exists")
	extractCmd.Flags().String("lang", "", "Tesseract language hint (overrides extract.language)")

	rootCmd.AddCommand(extractCmd)
}
