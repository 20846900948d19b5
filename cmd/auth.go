package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"canvascli/canvas"
	"canvascli/internal"
	"canvascli/utils"
)

var (
	authURL   string
	authToken string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with a Canvas instance",
	Long: `Authenticate with a Canvas instance and store the credential.

Prompts for the instance URL and access token unless both are given as
flags, validates them against the API, and persists the pair in the per-user
configuration directory. Re-running auth overwrites the stored credential.

Generate an access token in Canvas under Account > Settings > New Access Token.

Examples:
  canvas-cli auth
  canvas-cli auth -u https://school.instructure.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		instanceURL := authURL
		if instanceURL == "" {
			answer, err := utils.PromptLine(os.Stdin, os.Stderr, "Canvas instance URL:")
			if err != nil {
				return err
			}
			instanceURL = answer
		}
		if err := validateInstanceURL(instanceURL); err != nil {
			return err
		}

		token := authToken
		if token == "" {
			answer, err := utils.PromptLine(os.Stdin, os.Stderr, "Access token:")
			if err != nil {
				return err
			}
			token = answer
		}
		if token != strings.TrimSpace(token) {
			return internal.NewValidationError("access_token", "token cannot have leading or trailing whitespace")
		}

		client, err := canvas.NewClient(config)
		if err != nil {
			return err
		}

		store, err := canvas.NewFileCredentialStore(client)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		cred := &internal.Credential{
			BaseURL:     strings.TrimRight(instanceURL, "/"),
			AccessToken: token,
		}

		internal.LogInfo("Validating credential against %s", cred.BaseURL)
		identity, err := store.Save(ctx, cred)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Authenticated as: %s\n", identity.DisplayName())
		return nil
	},
}

// validateInstanceURL checks the URL is a well-formed http(s) origin
func validateInstanceURL(instanceURL string) error {
	parsed, err := url.Parse(instanceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return internal.NewValidationError("url", fmt.Sprintf("not a valid http(s) URL: %s", instanceURL)).
			WithSuggestion("Use the full origin, e.g. https://school.instructure.com")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(authCmd)

	authCmd.Flags().StringVarP(&authURL, "url", "u", "", "Canvas instance URL, e.g. https://school.instructure.com")
	authCmd.Flags().StringVarP(&authToken, "access-token", "t", "", "Canvas access token")
}
