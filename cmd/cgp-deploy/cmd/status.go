package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/cgp-deploy/internal/service/deploy"
)

// statusCmd reports what is currently installed.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the installed cgp versions and whether the installation is healthy.",
	Long: `Inspects the installation tree and reports the destination symlink, the
current version, every published version directory and the install receipt.
The command only reads; it never repairs. Exit status is zero even for a
broken installation, the health line carries the verdict.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		service, err := newDeployService(cmd)
		if err != nil {
			return err
		}

		status, err := service.Status(ctx)
		if err != nil {
			return err
		}

		printInstallationStatus(cmd.OutOrStdout(), status)

		return nil
	},
}

// printInstallationStatus renders the on-disk state for humans.
func printInstallationStatus(w io.Writer, status *deploy.InstallationStatus) {
	if !status.Installed() {
		fmt.Fprintln(w, "cgp is not installed")

		return
	}

	fmt.Fprintf(w, "destination: %s", status.DestLink)

	if status.DestTarget != "" {
		fmt.Fprintf(w, " -> %s", status.DestTarget)
	} else {
		fmt.Fprint(w, " (missing)")
	}

	fmt.Fprintln(w)

	if status.CurrentTarget != "" {
		fmt.Fprintf(w, "current:     %s\n", status.CurrentTarget)
	} else {
		fmt.Fprintln(w, "current:     missing")
	}

	if len(status.Versions) > 0 {
		fmt.Fprintf(w, "versions:    %s\n", strings.Join(status.Versions, ", "))
	}

	if r := status.Receipt; r != nil {
		fmt.Fprintf(w, "receipt:     %s installed %s by cgp-deploy %s\n",
			r.Tag, r.InstalledAt.Format(time.RFC3339), r.ManagerVersion)
	}

	if status.Healthy {
		fmt.Fprintln(w, "healthy:     yes")
	} else {
		fmt.Fprintf(w, "healthy:     no (%s)\n", status.Problem)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd)
}
