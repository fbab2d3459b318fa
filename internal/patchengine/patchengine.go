// Package patchengine drives the installed cgp executable. The deployment
// manager treats it as an external collaborator: commands are identified by
// exit code only, output passes straight through to the user.
package patchengine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
)

// healthCheckTimeout bounds the post-install probe so a hung binary cannot
// stall an unattended install.
const healthCheckTimeout = 10 * time.Second

// Engine invokes the installed cgp executable.
type Engine struct {
	// executable is the destination path of the installed binary.
	executable string
}

// New returns an engine around the executable at path.
func New(path string) *Engine {
	return &Engine{executable: path}
}

// Patch applies the GUI patch.
func (e *Engine) Patch(ctx context.Context) error {
	return e.run(ctx, "patch")
}

// Unpatch reverts the GUI patch.
func (e *Engine) Unpatch(ctx context.Context) error {
	return e.run(ctx, "unpatch")
}

// Status probes whether the patch is applied, via exit code. Output is
// discarded: the probe runs inside other flows and must stay quiet.
func (e *Engine) Status(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, e.executable, "status")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s status: %w", e.executable, err)
	}

	return nil
}

// AutoInstall registers the patch's own auto-apply hook.
func (e *Engine) AutoInstall(ctx context.Context) error {
	return e.run(ctx, "auto", "install")
}

// AutoUninstall removes the patch's auto-apply hook.
func (e *Engine) AutoUninstall(ctx context.Context) error {
	return e.run(ctx, "auto", "uninstall")
}

// HealthCheck probes the installed binary by asking for its version. A
// binary that cannot even print a version is not a working installation.
func (e *Engine) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, e.executable, "--version")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("health check %s --version: %s: %w", e.executable, firstLine(output), err)
	}

	logger.DebugKV(ctx, "health check passed",
		"executable", e.executable,
		"version", firstLine(output))

	return nil
}

// run executes a patch engine subcommand with inherited stdio.
func (e *Engine) run(ctx context.Context, args ...string) error {
	logger.DebugKV(ctx, "invoking patch engine", "executable", e.executable, "args", args)

	cmd := exec.CommandContext(ctx, e.executable, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", e.executable, args, err)
	}

	return nil
}

func firstLine(output []byte) string {
	for i, b := range output {
		if b == '\n' || b == '\r' {
			return string(output[:i])
		}
	}

	return string(output)
}
