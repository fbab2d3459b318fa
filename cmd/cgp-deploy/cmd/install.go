package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/cgp-deploy/internal/service/deploy"
)

var (
	// installAutoHook registers cgp's auto-apply hook after the install.
	installAutoHook bool
	// installSkipHealthCheck disables the post-install binary probe.
	installSkipHealthCheck bool

	// installCmd downloads, verifies and installs the cgp bundle.
	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Download, verify and install cgp, then link it into the destination.",
		Long: `Resolves the release for this platform, downloads the bundle archive,
verifies its SHA-256 checksum against the published manifest, publishes it
under the installation root and atomically switches the current version.
A failed install never damages a previously working one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			service, err := newDeployService(cmd)
			if err != nil {
				return err
			}

			return service.Install(ctx, &deploy.InstallOptions{
				SkipHealthCheck: installSkipHealthCheck,
				AutoHook:        installAutoHook,
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	installCmd.Flags().BoolVar(&installAutoHook, "auto-hook", false,
		"register cgp's auto-apply hook after installing")
	installCmd.Flags().BoolVar(&installSkipHealthCheck, "skip-health-check", false,
		"do not probe the installed binary after switching")

	rootCmd.AddCommand(installCmd)
}
