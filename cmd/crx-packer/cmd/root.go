package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/crx-packer/internal/config"
	"github.com/oshokin/crx-packer/internal/logger"
	"github.com/oshokin/crx-packer/internal/service/packager"
	"github.com/oshokin/crx-packer/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// projectRoot anchors relative paths from the configuration.
	projectRoot string
	// logLevel is the minimum level of console messages.
	logLevel string

	// errUnknownLogLevel is returned for a --log-level value zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd packs the extension build directory.
	rootCmd = &cobra.Command{
		Use:   "crx-packer",
		Short: "Pack the extension build directory into a signed CRX archive.",
		Long: `Packs the unpacked extension in build/ into dist/sync-my-cookie.crx using the
first Chrome/Chromium executable found on PATH.

If key.pem exists it is used to sign the archive, keeping the extension ID stable.
Otherwise the browser generates a new key, which is moved to key.pem for later runs.
Paths, the list of browsers and the process timeout can be changed in crx-packer.yaml.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: applyLogLevel,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				ConfigPath:  configPath,
				ProjectRoot: projectRoot,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the crx-packer CLI and exits with non-zero status on error.
func Execute() {
	if code := execute(os.Args[1:]); code != 0 {
		os.Exit(code)
	}
}

// execute runs the root command with args and returns the process exit status.
func execute(args []string) int {
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if err != nil && !reportedByPackager(err) {
		logger.ErrorKV(context.Background(), "Command failed", "error", err)
	}

	logger.Sync()

	if err != nil {
		return 1
	}

	return 0
}

// reportedByPackager tells whether packager.Run has already logged err.
func reportedByPackager(err error) bool {
	var stepErr *packager.StepError

	return errors.As(err, &stepErr) || errors.Is(err, packager.ErrMissingExecutable)
}

func applyLogLevel(_ *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.PersistentFlags().StringVarP(&projectRoot, "root", "r", "", "project root (default current directory)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(newConfigCommand())
	version.AttachCobraVersionCommand(rootCmd)
}
