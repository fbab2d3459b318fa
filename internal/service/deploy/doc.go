// Package deploy orchestrates the deployment lifecycle behind the CLI:
// install, upgrade, check, status, and uninstall. It composes the release
// client and fetcher, the versioned installer, the patch engine hooks, and
// the receipt store; all policy (update comparison, check throttling,
// process-scan guards, health checks) lives here.
package deploy
