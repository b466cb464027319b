package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"reel/internal/service/pipeline"
)

var renameOpts struct {
	dir    string
	length int
	dryRun bool
}

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename images to short random IDs",
	Long: `Rename every image in the directory to a unique short alphanumeric ID,
keeping the extension. Useful before uploading sources with unwieldy or
colliding names.`,
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)

	flags := renameCmd.Flags()
	flags.StringVar(&renameOpts.dir, "dir", "", "directory to rename in (default: <workdir>/img/ready)")
	flags.IntVar(&renameOpts.length, "length", 6, "length of the generated ID")
	flags.BoolVar(&renameOpts.dryRun, "dry-run", false, "show the mapping without renaming")
}

func runRename(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Rename(ctx, pipeline.RenameOptions{
		Dir:    renameOpts.dir,
		Length: renameOpts.length,
		DryRun: renameOpts.dryRun,
	})
	if err != nil {
		return err
	}

	oldNames := make([]string, 0, len(res.Mapping))
	for oldName := range res.Mapping {
		oldNames = append(oldNames, oldName)
	}
	sort.Strings(oldNames)
	for _, oldName := range oldNames {
		fmt.Printf("%s -> %s\n", oldName, res.Mapping[oldName])
	}

	if renameOpts.dryRun {
		return nil
	}
	return finish(res.Renamed, res.Failed)
}
