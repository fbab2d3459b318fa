package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/service/deploy"
)

var (
	// upgradeForce installs even when no newer version is known.
	upgradeForce bool
	// upgradeAuto is the unattended mode for shell hooks.
	upgradeAuto bool
	// upgradeSkipHealthCheck disables the post-install binary probe.
	upgradeSkipHealthCheck bool

	// upgradeCmd installs the newest matching release when it is newer.
	upgradeCmd = &cobra.Command{
		Use:   "upgrade",
		Short: "Install the newest cgp release when it is newer than the installed one.",
		Long: `Compares the newest matching release against the installed version and,
when it is newer, runs the same verified install flow as 'install'. If the
patch was applied before the upgrade, the new binary re-applies it.

--auto is meant for shell hooks: it honors the update-check interval and
the CGP_NO_AUTO_UPDATE environment variable, prints a single line when it
updates, and stays silent otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			service, err := newDeployService(cmd)
			if err != nil {
				return err
			}

			// Auto mode rides on ordinary cgp invocations; routine chatter
			// stays off the user's terminal unless a level was requested.
			if upgradeAuto && !cmd.Flags().Changed("log-level") {
				ctx = logger.Quiet(ctx)
			}

			return service.Upgrade(ctx, &deploy.UpgradeOptions{
				InstallOptions: deploy.InstallOptions{SkipHealthCheck: upgradeSkipHealthCheck},
				Force:          upgradeForce,
				Auto:           upgradeAuto,
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	upgradeCmd.Flags().BoolVar(&upgradeForce, "force", false,
		"install even when no newer version is known")
	upgradeCmd.Flags().BoolVar(&upgradeAuto, "auto", false,
		"unattended mode for shell hooks, rate-limited by the check interval")
	upgradeCmd.Flags().BoolVar(&upgradeSkipHealthCheck, "skip-health-check", false,
		"do not probe the installed binary after switching")

	rootCmd.AddCommand(upgradeCmd)
}
