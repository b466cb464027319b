package cmd

import (
	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var parseOpts struct {
	limit     int
	generated bool
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Turn ready images into prompt JSON files",
	Long: `For every image in the ready directory: upload it, derive a descriptive
name plus image/video prompts through the LLM chain, write the prompt JSON to
out/prompt_json and download a verified copy into img/uploaded.`,
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	flags := parseCmd.Flags()
	flags.IntVar(&parseOpts.limit, "limit", 0, "max images to process (0 = all)")
	flags.BoolVar(&parseOpts.generated, "generated", false,
		"treat sources as imagegen output: keep origin linkage, move originals to img/processed")
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Parse(ctx, pipeline.ParseOptions{
		Limit:     parseOpts.limit,
		Generated: parseOpts.generated,
	})
	if err != nil {
		return err
	}
	return finish(res.Succeeded, res.Failed)
}
