package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"canvascli/canvas"
	"canvascli/internal"
	"canvascli/utils"
)

var (
	submitCourseID     int64
	submitAssignmentID int64
	submitURL          string
)

var submitCmd = &cobra.Command{
	Use:   "submit [flags] <files...>",
	Short: "Submit files to a Canvas assignment",
	Long: `Submit one or more files to a Canvas assignment as a single submission.

The target assignment can be given as explicit IDs, as a pasted assignment
URL, or picked interactively when neither is supplied. All files are
validated locally before anything is uploaded.

Examples:
  canvas-cli submit main.c report.pdf
  canvas-cli submit -c 123 -a 456 main.c
  canvas-cli submit -u https://school.instructure.com/courses/123/assignments/456 main.c`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := canvas.NewClient(config)
		if err != nil {
			return err
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

		return pipeline.Submit(ctx, cred, submitReference(), args)
	},
}

// submitReference builds the resource reference from the submit flags
func submitReference() internal.ResourceReference {
	if submitURL != "" {
		return internal.ResourceReference{Kind: internal.RefByURL, RawURL: submitURL}
	}
	if submitCourseID > 0 || submitAssignmentID > 0 {
		return internal.ResourceReference{
			Kind:         internal.RefByIDs,
			CourseID:     submitCourseID,
			AssignmentID: submitAssignmentID,
		}
	}
	return internal.ResourceReference{Kind: internal.RefInteractive}
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().Int64VarP(&submitCourseID, "course", "c", 0, "Canvas course ID")
	submitCmd.Flags().Int64VarP(&submitAssignmentID, "assignment", "a", 0, "Canvas assignment ID")
	submitCmd.Flags().StringVarP(&submitURL, "url", "u", "", "Canvas assignment URL to submit to")
}
