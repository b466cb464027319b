package cmd

import (
	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var fixOpts struct {
	limit  int
	dryRun bool
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Verify and repair uploaded image records",
	Long: `For successful upload records: re-download the hosted image and compare its
size against the recorded one; mismatches are marked failed, missing sizes get
recorded. Failed records that still have a local copy are re-uploaded and their
URL refreshed.`,
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)

	flags := fixCmd.Flags()
	flags.IntVar(&fixOpts.limit, "limit", 0, "max records to check (0 = all)")
	flags.BoolVar(&fixOpts.dryRun, "dry-run", false, "report what would change without downloading or writing")
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Fix(ctx, pipeline.FixOptions{
		Limit:  fixOpts.limit,
		DryRun: fixOpts.dryRun,
	})
	if err != nil {
		return err
	}

	// 尺寸不匹配是修复流程的正常产出，只有下载/重传本身出错才算失败
	succeeded := res.SizeMatches + res.SizeMismatches + res.SizeRecorded + res.Reuploaded
	return finish(succeeded, res.DownloadFailed+res.ReuploadFailed)
}
