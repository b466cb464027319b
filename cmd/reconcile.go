package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var reconcileOpts struct {
	dryRun bool
	stale  bool
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync prompt JSON, video logs and upload CSV back into the database",
	Long: `Walk the used/ prompt JSON files, the video JSONL log and the upload CSV,
and repair the database to match: missing images are created (or attached to the
legacy placeholder), prompts are upserted and video records created or updated.
The run is idempotent; --dry-run only reports the differences.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	flags := reconcileCmd.Flags()
	flags.BoolVar(&reconcileOpts.dryRun, "dry-run", false, "report differences without writing")
	flags.BoolVar(&reconcileOpts.stale, "stale", false, "fail leftover uploading/generating records")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Reconcile(ctx, pipeline.ReconcileOptions{
		DryRun: reconcileOpts.dryRun,
		Stale:  reconcileOpts.stale,
	})
	if err != nil {
		return err
	}

	if reconcileOpts.dryRun {
		fmt.Println("Dry run, nothing written.")
	}
	fmt.Printf("JSON files processed:  %d\n", res.JSONProcessed)
	fmt.Printf("Images matched:        %d\n", res.ImagesMatched)
	fmt.Printf("Images created:        %d\n", res.ImagesCreated)
	fmt.Printf("Attached to legacy:    %d\n", res.LegacyAttached)
	fmt.Printf("Videos upserted:       %d\n", res.VideosUpserted)
	fmt.Printf("Imported from CSV:     %d\n", res.CSVImported)
	if reconcileOpts.stale {
		fmt.Printf("Stale images failed:   %d\n", res.StaleImages)
		fmt.Printf("Stale videos failed:   %d\n", res.StaleVideos)
	}
	if res.Stats != nil {
		fmt.Println()
		printStats(res.Stats)
	}
	return nil
}
