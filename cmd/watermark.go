package cmd

import (
	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var watermarkOpts struct {
	inputDir  string
	outputDir string
}

var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Remove watermarks from images",
	Long: `Run every image in img/ready/watermark through the Gemini image edit model
with the watermark removal instruction and save the result under the same name
in img/ready/no-watermark.`,
	RunE: runWatermark,
}

func init() {
	rootCmd.AddCommand(watermarkCmd)

	flags := watermarkCmd.Flags()
	flags.StringVar(&watermarkOpts.inputDir, "input-dir", "", "source directory (default: <workdir>/img/ready/watermark)")
	flags.StringVar(&watermarkOpts.outputDir, "output-dir", "", "target directory (default: <workdir>/img/ready/no-watermark)")
}

func runWatermark(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Watermark(ctx, pipeline.WatermarkOptions{
		InputDir:  watermarkOpts.inputDir,
		OutputDir: watermarkOpts.outputDir,
	})
	if err != nil {
		return err
	}
	return finish(res.Succeeded, res.Failed)
}
