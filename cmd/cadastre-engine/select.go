package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surveyth/cadastre-engine/internal/crop"
)

var selectCmd = &cobra.Command{
	Use:   "select <scan>",
	Short: "Crop the coordinate table region out of a deed scan",
	Long: `Select cuts the region of interest containing the coordinate table out of
a scanned deed image and writes it next to the scan as <base>_table.jpg.
The region is given in image pixels as --roi x,y,width,height; interactive
region selection is available in the serve editor.`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

func runSelect(cmd *cobra.Command, args []string) error {
	roiSpec, _ := cmd.Flags().GetString("roi")
	if roiSpec == "" {
		return fmt.Errorf("--roi x,y,width,height is required")
	}
	roi, err := crop.ParseROI(roiSpec)
	if err != nil {
		return err
	}

	path, err := crop.WriteTable(args[0], roi)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func init() {
	selectCmd.Flags().String("roi", "", "table region in image pixels: x,y,width,height")

	rootCmd.AddCommand(selectCmd)
}
