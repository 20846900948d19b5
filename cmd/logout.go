package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"canvascli/canvas"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential",
	Long: `Remove the stored Canvas credential.

Idempotent: running logout when no credential is stored is not an error.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Clearing needs no auth probe, so no client is constructed
		store, err := canvas.NewFileCredentialStore(nil)
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("✓ Logged out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
