package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"canvascli/canvas"
	"canvascli/internal"
	"canvascli/utils"
)

var (
	downloadCourseID int64
	downloadURL      string
	downloadFileIDs  []int64
	downloadOutDir   string
	downloadRate     string
	downloadWorkers  int
)

var downloadCmd = &cobra.Command{
	Use:   "download [flags]",
	Short: "Download files from a Canvas course",
	Long: `Download files from a Canvas course.

The course can be given as an explicit ID, as a pasted course URL, or picked
interactively. Files are chosen with -f flags or interactively; downloads run
concurrently and one file's failure does not abort the others.

Examples:
  canvas-cli download
  canvas-cli download -c 123 -o ./lectures
  canvas-cli download -c 123 -f 1001 -f 1002 -r 5M`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if downloadWorkers > 0 {
			config.DownloadWorkers = downloadWorkers
			if err := config.ValidateConfig(); err != nil {
				return err
			}
		}

		client, err := canvas.NewClient(config)
		if err != nil {
			return err
		}

		if downloadRate != "" {
			bytesPerSecond, err := utils.ParseRateLimit(downloadRate)
			if err != nil {
				return internal.NewValidationError("limit-rate", err.Error()).
					WithSuggestion("Use formats like 5M (5 MB/s), 500K (500 KB/s), or a plain byte count")
			}
			client.SetRateLimit(bytesPerSecond)
			internal.LogDebug("Rate limit set to %d bytes/sec", bytesPerSecond)
		}

		cred, err := loadCredential(client)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		selector := utils.NewTerminalSelector(os.Stdin, os.Stderr)
		resolver := canvas.NewResolver(client, selector)
		pipeline := canvas.NewPipeline(client, resolver, config, os.Stdout)

		return pipeline.Download(ctx, cred, downloadReference(), downloadFileIDs, downloadOutDir)
	},
}

// downloadReference builds the resource reference from the download flags
func downloadReference() internal.ResourceReference {
	if downloadURL != "" {
		return internal.ResourceReference{Kind: internal.RefByURL, RawURL: downloadURL}
	}
	if downloadCourseID > 0 {
		return internal.ResourceReference{Kind: internal.RefByIDs, CourseID: downloadCourseID}
	}
	return internal.ResourceReference{Kind: internal.RefInteractive}
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().Int64VarP(&downloadCourseID, "course", "c", 0, "Canvas course ID")
	downloadCmd.Flags().StringVarP(&downloadURL, "url", "u", "", "Canvas course URL to download from")
	downloadCmd.Flags().Int64SliceVarP(&downloadFileIDs, "file", "f", nil, "Canvas file ID to download (repeatable)")
	downloadCmd.Flags().StringVarP(&downloadOutDir, "output", "o", ".", "Output directory")
	downloadCmd.Flags().StringVarP(&downloadRate, "limit-rate", "r", "", "Bandwidth limit, e.g. 5M for 5 MB/s")
	downloadCmd.Flags().IntVarP(&downloadWorkers, "workers", "w", 0, "Concurrent download workers (1-16) (env: CANVAS_WORKERS)")
}
