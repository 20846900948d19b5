package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"canvascli/canvas"
	"canvascli/internal"
)

var (
	quiet    bool
	debug    bool
	logLevel string
	logFile  string
	proxyURL string
	timeout  int
	config   *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "canvas-cli",
	Short:   "Interact with Canvas LMS from the command line",
	Version: "v1.0.0",
	Long: `canvas-cli is a command-line client for the Canvas LMS REST API.

Authenticate once, then submit assignments and download course files without
leaving the terminal.

Examples:
  canvas-cli auth
  canvas-cli submit main.c report.pdf
  canvas-cli submit -u https://school.instructure.com/courses/123/assignments/456 main.c
  canvas-cli download -c 123 -o ./lectures

Environment Variables:
  CANVAS_BASE_URL      Instance URL, overrides the stored credential
  CANVAS_ACCESS_TOKEN  Access token, overrides the stored credential
  CANVAS_TIMEOUT       HTTP timeout in seconds
  CANVAS_WORKERS       Concurrent download workers (1-16)
  CANVAS_PROXY         HTTP/SOCKS5 proxy URL`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(); err != nil {
			return fmt.Errorf("configuration error: %v", err)
		}

		if err := internal.InitLogger(config); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		internal.LogDebug("Configuration loaded: timeout=%ds, workers=%d, attempts=%d",
			config.DefaultTimeout, config.DownloadWorkers, config.MaxAttempts)

		return nil
	},
}

// loadConfiguration merges defaults, environment variables, and CLI flags
func loadConfiguration() error {
	config = internal.DefaultConfig()
	config.LoadFromEnv()

	if timeout > 0 {
		config.DefaultTimeout = timeout
	}

	if proxyURL != "" {
		config.ProxyURL = proxyURL
	}

	if debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}

	if quiet {
		config.QuietMode = true
	}

	if logLevel != "" {
		config.LogLevel = logLevel
	}

	if logFile != "" {
		config.LogFile = logFile
	}

	return config.ValidateConfig()
}

// loadCredential returns the credential for this invocation: the environment
// override when both variables are set, otherwise the stored record
func loadCredential(client *canvas.Client) (*internal.Credential, error) {
	if cred, ok := internal.EnvCredential(); ok {
		internal.LogDebug("Using credential from environment")
		return cred, nil
	}

	store, err := canvas.NewFileCredentialStore(client)
	if err != nil {
		return nil, err
	}
	return store.Load()
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so an
// interrupted operation shuts down cleanly instead of mid-write
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		internal.LogInfo("Received signal %v, shutting down", sig)
		cancel()
	}()

	return ctx, cancel
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output (env: CANVAS_QUIET)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (env: CANVAS_DEBUG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: CANVAS_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (env: CANVAS_LOG_FILE)")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS5 proxy URL (env: CANVAS_PROXY)")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 0, "HTTP timeout in seconds (env: CANVAS_TIMEOUT)")
}

// Execute runs the root command. An explicit user abort is a clean exit, not
// a failure.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && internal.IsType(err, internal.ErrUserCancelled) {
		fmt.Fprintln(os.Stderr, "Cancelled.")
		return nil
	}
	return err
}
