package cmd

import (
	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var imagegenOpts struct {
	source string
	prompt string
	limit  int
	ready  bool
}

var imagegenCmd = &cobra.Command{
	Use:   "imagegen",
	Short: "Generate images from video prompts",
	Long: `Generate images through the Duomi text-to-image API. Prompts come from the
database (--source db), from used prompt JSON files (--source json), or from the
command line (--source prompt --prompt "..."). With --ready the results land in
img/ready with a linked pending images row, otherwise in out/generated_images.`,
	RunE: runImagegen,
}

func init() {
	rootCmd.AddCommand(imagegenCmd)

	flags := imagegenCmd.Flags()
	flags.StringVar(&imagegenOpts.source, "source", pipeline.ImagegenSourceDB, "prompt source (db/json/prompt)")
	flags.StringVar(&imagegenOpts.prompt, "prompt", "", "ad-hoc prompt text (with --source prompt)")
	flags.IntVar(&imagegenOpts.limit, "limit", 0, "max images to generate (0 = all)")
	flags.BoolVar(&imagegenOpts.ready, "ready", false, "save into img/ready and create linked image rows")
}

func runImagegen(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Imagegen(ctx, pipeline.ImagegenOptions{
		Source: imagegenOpts.source,
		Prompt: imagegenOpts.prompt,
		Limit:  imagegenOpts.limit,
		Ready:  imagegenOpts.ready,
	})
	if err != nil {
		return err
	}
	return finish(res.Succeeded, res.Failed)
}
