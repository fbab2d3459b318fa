package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/cgp-deploy/internal/service/deploy"
)

var (
	// uninstallKeepVersions leaves the published versions on disk.
	uninstallKeepVersions bool
	// uninstallForce proceeds even when cgp processes are running.
	uninstallForce bool

	// uninstallCmd removes the managed installation.
	uninstallCmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the cgp installation this tool manages.",
		Long: `Unwinds cgp's hooks, removes the destination symlink, the current pointer,
the published versions and the install receipt. Only paths this tool created
are touched: a destination occupied by something else is left alone and
reported as a conflict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			service, err := newDeployService(cmd)
			if err != nil {
				return err
			}

			return service.Uninstall(ctx, &deploy.UninstallOptions{
				KeepVersions: uninstallKeepVersions,
				Force:        uninstallForce,
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	uninstallCmd.Flags().BoolVar(&uninstallKeepVersions, "keep-versions", false,
		"leave the published versions on disk for a later reinstall")
	uninstallCmd.Flags().BoolVar(&uninstallForce, "force", false,
		"proceed even when cgp processes are running")

	rootCmd.AddCommand(uninstallCmd)
}
