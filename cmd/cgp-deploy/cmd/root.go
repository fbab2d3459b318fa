package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/cgp-deploy/internal/config"
	"github.com/baaaaaaaka/cgp-deploy/internal/exitcode"
	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/service/deploy"
	"github.com/baaaaaaaka/cgp-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// githubRepo overrides the release repository.
	githubRepo string
	// tag overrides the release tag to deploy.
	tag string
	// installDest overrides the PATH-visible destination directory.
	installDest string
	// installRoot overrides the installation root.
	installRoot string
	// sourceDir switches release files to a local directory.
	sourceDir string
	// osOverride and archOverride pin the platform for asset selection.
	osOverride   string
	archOverride string
	// timeout bounds individual network operations.
	timeout time.Duration
	// logLevel is the minimum level for stderr logs.
	logLevel string

	// rootCmd represents the base command managing cgp deployments.
	rootCmd = &cobra.Command{
		Use:   "cgp-deploy",
		Short: "Install, upgrade and remove cgp without breaking a working copy.",
		Long: `Manages versioned cgp installations: downloads the release bundle, verifies
its checksum, publishes it under the installation root and switches the
current version atomically. A previously working installation survives any
failed attempt, and automation can rely on the documented exit codes.

Settings resolve with the precedence defaults < config file < CGP_*
environment variables < flags. The default config file is cgp-deploy.yaml
under the user configuration directory.`,
		// Runtime failures carry their own remediation text; dumping usage
		// on top would bury it for unattended runs.
		SilenceUsage: true,
	}
)

// Execute runs the cgp-deploy CLI and exits with the documented status code
// for the failure class.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.FromError(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to configuration file")
	flags.StringVar(&githubRepo, "repo", "", "release repository in <owner>/<name> form")
	flags.StringVarP(&tag, "tag", "t", "", `release tag to deploy ("latest" or an explicit tag like "v0.1.0")`)
	flags.StringVar(&installDest, "dest", "", "PATH-visible directory receiving the cgp symlink")
	flags.StringVar(&installRoot, "root", "", "installation root owning versions and the current pointer")
	flags.StringVar(&sourceDir, "source", "", "local directory supplying release files instead of the network")
	flags.StringVar(&osOverride, "os", "", "operating system override for asset selection")
	flags.StringVar(&archOverride, "arch", "", "architecture override for asset selection")
	flags.DurationVar(&timeout, "timeout", 0, "bound on individual network operations")
	flags.StringVarP(&logLevel, "log-level", "l", "", "minimum level for stderr logs (debug, info, warn, error)")
}

// loadConfig resolves the configuration and layers the explicitly set flags
// on top, then applies the log level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("repo") {
		cfg.GithubRepo = githubRepo
	}

	if flags.Changed("tag") {
		cfg.Tag = tag
	}

	if flags.Changed("dest") {
		cfg.InstallDest = installDest
	}

	if flags.Changed("root") {
		cfg.InstallRoot = installRoot
	}

	if flags.Changed("source") {
		cfg.SourceDir = sourceDir
	}

	if flags.Changed("os") {
		cfg.OS = osOverride
	}

	if flags.Changed("arch") {
		cfg.Arch = archOverride
	}

	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}

	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	return cfg, nil
}

// newDeployService builds the deploy service for the resolved configuration.
func newDeployService(cmd *cobra.Command) (*deploy.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	return deploy.New(cfg)
}
