package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"reel/internal/model/media"
	"reel/internal/service/pipeline"
)

var videoOpts struct {
	service    string
	jsonPath   string
	imagePath  string
	limit      int
	promptType string
}

var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Generate videos from prompt JSON + image pairs",
	Long: `Pair prompt JSON files in out/prompt_json with images in img/ready and
submit them to the chosen generation service. The base video prompt is refined
through the LLM chain first; finished videos land in out/, consumed JSON files
move to used/ and source images to img/generated.`,
	RunE: runVideo,
}

func init() {
	rootCmd.AddCommand(videoCmd)

	flags := videoCmd.Flags()
	flags.StringVar(&videoOpts.service, "service", "duomi", "generation service (duomi/kling/veo)")
	flags.StringVar(&videoOpts.jsonPath, "json", "", "explicit prompt JSON path (skips discovery)")
	flags.StringVar(&videoOpts.imagePath, "image", "", "explicit image path (requires --json)")
	flags.IntVar(&videoOpts.limit, "limit", 0, "max pairs to process (0 = first pair only)")
	flags.StringVar(&videoOpts.promptType, "prompt-type", "base",
		"prompt variant to submit (base/refined/creative_1/creative_2/creative_3)")
}

func runVideo(cmd *cobra.Command, args []string) error {
	service, ok := media.ParseService(videoOpts.service)
	if !ok {
		return fmt.Errorf("unknown service %q, expected duomi/kling/veo", videoOpts.service)
	}
	promptType, ok := media.ParsePromptType(videoOpts.promptType)
	if !ok {
		return fmt.Errorf("unknown prompt type %q, expected base/refined/creative_1..3", videoOpts.promptType)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Video(ctx, pipeline.VideoOptions{
		Service:    service,
		JSONPath:   videoOpts.jsonPath,
		ImagePath:  videoOpts.imagePath,
		Limit:      videoOpts.limit,
		PromptType: promptType,
	})
	if err != nil {
		return err
	}
	return finish(res.Succeeded+res.Skipped, res.Failed)
}
