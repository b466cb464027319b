package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var exportOpts struct {
	output string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export video prompts to CSV",
	Long:  `Write all non-empty video prompts from the database to a two-column CSV (image_id, video_prompt).`,
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOpts.output, "output", "",
		"output path (default: <workdir>/docs/video_prompts_extract.csv)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Export(ctx, pipeline.ExportOptions{OutputPath: exportOpts.output})
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d prompt(s) to %s\n", res.Rows, res.Path)
	return nil
}
