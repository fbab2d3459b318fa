// Package procs inspects the process table for running cgp instances so
// install and uninstall flows can warn before the executable disappears
// from under them.
package procs

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/go-ps"

	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
)

// Running lists the process IDs of other processes whose executable name
// matches name. The calling process is never included.
func Running(ctx context.Context, name string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	var pids []int

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != name {
			continue
		}

		pids = append(pids, process.Pid())
	}

	if len(pids) > 0 {
		logger.DebugKV(ctx, "found running instances", "name", name, "pids", pids)
	}

	return pids, nil
}

// AnyRunning reports whether at least one other process runs the named
// executable. Scan failures count as "none running": the answer gates
// warnings, not correctness.
func AnyRunning(ctx context.Context, name string) bool {
	pids, err := Running(ctx, name)
	if err != nil {
		logger.DebugKV(ctx, "process scan failed", "error", err)

		return false
	}

	return len(pids) > 0
}
