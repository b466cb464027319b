package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var verifyOpts struct {
	limit   int
	orphans bool
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Health-check prompt JSON files",
	Long: `Check every JSON in out/prompt_json: it must parse, carry an image_url and
the hosted image must still download. Broken files move to out/failed_json with
an error note. --orphans additionally cross-checks img/uploaded against the
JSON files in both directions.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	flags := verifyCmd.Flags()
	flags.IntVar(&verifyOpts.limit, "limit", 0, "max JSON files to check (0 = all)")
	flags.BoolVar(&verifyOpts.orphans, "orphans", false, "also report unreferenced uploads and missing images")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Verify(ctx, pipeline.VerifyOptions{
		Limit:   verifyOpts.limit,
		Orphans: verifyOpts.orphans,
	})
	if err != nil {
		return err
	}

	if verifyOpts.orphans {
		if len(res.MissingImages) > 0 {
			fmt.Printf("JSON files whose image is missing from img/uploaded (%d):\n", len(res.MissingImages))
			for _, name := range res.MissingImages {
				fmt.Printf("  %s\n", name)
			}
		}
		if len(res.OrphanedImages) > 0 {
			fmt.Printf("Uploaded images referenced by no JSON (%d):\n", len(res.OrphanedImages))
			for _, name := range res.OrphanedImages {
				fmt.Printf("  %s\n", name)
			}
		}
	}
	return finish(res.Passed, res.Failed)
}
