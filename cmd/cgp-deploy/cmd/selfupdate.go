package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/cgp-deploy/internal/service/selfupdate"
)

// selfUpdateCmd replaces the running cgp-deploy binary.
var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Replace this cgp-deploy binary with the newest released one.",
	Long: `Downloads the deploy binary published for this platform, validates its
checksum and swaps it over the running executable. The previous binary is
kept as a .old backup until the new one proves it can run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		service, err := selfupdate.New(cfg)
		if err != nil {
			return err
		}

		return service.Run(ctx)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(selfUpdateCmd)
}
