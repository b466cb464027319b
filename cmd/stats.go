package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	mediarepo "reel/internal/repository/media"
	"reel/internal/service/pipeline"
)

var statsOpts struct {
	jsonOut bool
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline statistics",
	Long:  `Summarize the images, prompts and videos tables: totals, per-status counts, generation services, average durations and last activity.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsOpts.jsonOut, "json", false, "print as JSON instead of a table")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := pipeline.Bootstrap(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}

	if statsOpts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	printStats(stats)
	return nil
}

// printStats 控制台表格输出，reconcile 的结尾汇总也用它
func printStats(st *mediarepo.Statistics) {
	fmt.Println("Pipeline statistics")
	fmt.Println("===================")
	fmt.Printf("Images:  %d\n", st.TotalImages)
	printCounts(st.ImagesByStatus)
	fmt.Printf("Prompts: %d (refined %d, creative %d)\n",
		st.TotalPrompts, st.RefinedPrompts, st.CreativePrompts)
	fmt.Printf("Videos:  %d\n", st.TotalVideos)
	printCounts(st.VideosByStatus)
	if len(st.VideosByService) > 0 {
		fmt.Println("By service:")
		printCounts(st.VideosByService)
	}
	if st.AvgUploadSeconds > 0 {
		fmt.Printf("Avg upload time:      %.1fs\n", st.AvgUploadSeconds)
	}
	if st.AvgGenerationSeconds > 0 {
		fmt.Printf("Avg generation time:  %.1fs\n", st.AvgGenerationSeconds)
	}
	if st.TotalImageBytes > 0 {
		fmt.Printf("Image bytes:          %.1f MB\n", float64(st.TotalImageBytes)/(1<<20))
	}
	if st.TotalVideoBytes > 0 {
		fmt.Printf("Video bytes:          %.1f MB\n", float64(st.TotalVideoBytes)/(1<<20))
	}
	if st.LastImageAt != "" {
		fmt.Printf("Last image activity:  %s\n", st.LastImageAt)
	}
	if st.LastVideoAt != "" {
		fmt.Printf("Last video activity:  %s\n", st.LastVideoAt)
	}
}

func printCounts(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-12s %d\n", k, counts[k])
	}
}
