package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/cgp-deploy/internal/service/deploy"
)

// checkCmd compares the newest release against the installed version.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a newer cgp release is available.",
	Long: `Compares the newest matching release against what is installed and reports
the outcome. The check exits successfully even when the release host cannot
be reached; automation treats "cannot know" as "nothing to do".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		service, err := newDeployService(cmd)
		if err != nil {
			return err
		}

		status, err := service.CheckForUpdate(ctx)
		if err != nil {
			return err
		}

		printUpdateStatus(cmd.OutOrStdout(), status)

		return nil
	},
}

// printUpdateStatus renders the check outcome for humans.
func printUpdateStatus(w io.Writer, status *deploy.UpdateStatus) {
	fmt.Fprintf(w, "repository: %s\n", status.Repo)
	fmt.Fprintf(w, "asset:      %s\n", status.AssetName)

	if status.InstalledVersion != "" {
		fmt.Fprintf(w, "installed:  %s (%s)\n", status.InstalledVersion, status.InstalledTag)
	} else {
		fmt.Fprintln(w, "installed:  none")
	}

	switch {
	case status.Degraded != "":
		fmt.Fprintf(w, "newest:     unknown (%s)\n", status.Degraded)
	case status.UpdateAvailable:
		fmt.Fprintf(w, "newest:     %s (%s)\n", status.RemoteVersion, status.RemoteTag)
		fmt.Fprintln(w, "update available, run 'cgp-deploy upgrade'")
	default:
		fmt.Fprintf(w, "newest:     %s (%s)\n", status.RemoteVersion, status.RemoteTag)
		fmt.Fprintln(w, "cgp is up to date")
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(checkCmd)
}
