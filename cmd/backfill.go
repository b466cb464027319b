package cmd

import (
	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var backfillOpts struct {
	dryRun      bool
	backup      bool
	includeUsed bool
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill missing refined/creative prompts in existing JSON files",
	Long: `Older prompt JSON files only carry the base prompts. Backfill generates the
refined prompt and the three creative variants for any file missing them,
rewrites the JSON and mirrors the new prompts into the database when the image
is known.`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	flags := backfillCmd.Flags()
	flags.BoolVar(&backfillOpts.dryRun, "dry-run", false, "list missing fields without generating or writing")
	flags.BoolVar(&backfillOpts.backup, "backup", false, "keep a timestamped .backup copy before rewriting")
	flags.BoolVar(&backfillOpts.includeUsed, "include-used", false, "also backfill JSON files already moved to used/")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Backfill(ctx, pipeline.BackfillOptions{
		DryRun:      backfillOpts.dryRun,
		Backup:      backfillOpts.backup,
		IncludeUsed: backfillOpts.includeUsed,
	})
	if err != nil {
		return err
	}
	return finish(res.Updated+res.Skipped, res.Failed)
}
