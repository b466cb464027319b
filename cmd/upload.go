package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var uploadOpts struct {
	count     int
	sourceDir string
	move      bool
	resume    bool
	dryRun    bool
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Batch-upload ready images to the image host",
	Long: `Upload images from the ready directory to freeimage.host. Every file gets
an images row (pending -> uploading -> success/failed) and a batch CSV entry.
Use --resume to skip files already recorded as successful.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	flags := uploadCmd.Flags()
	flags.IntVar(&uploadOpts.count, "count", 0, "images per batch (0 = configured default, capped by batch_max)")
	flags.StringVar(&uploadOpts.sourceDir, "source-dir", "", "source directory (default: <workdir>/img/ready)")
	flags.BoolVar(&uploadOpts.move, "move", false, "move uploaded images to img/generated")
	flags.BoolVar(&uploadOpts.resume, "resume", false, "skip files already successful in the batch CSV")
	flags.BoolVar(&uploadOpts.dryRun, "dry-run", false, "list the files that would be uploaded and exit")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Upload(ctx, pipeline.UploadOptions{
		Count:     uploadOpts.count,
		SourceDir: uploadOpts.sourceDir,
		Move:      uploadOpts.move,
		Resume:    uploadOpts.resume,
		DryRun:    uploadOpts.dryRun,
	})
	if err != nil {
		return err
	}

	if uploadOpts.dryRun {
		fmt.Printf("Would upload %d file(s):\n", len(res.Planned))
		for _, name := range res.Planned {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}
	return finish(res.Succeeded, res.Failed)
}
