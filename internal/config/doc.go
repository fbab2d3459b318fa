// Package config defines the deployment settings used by every cgp-deploy
// command and resolves them from defaults, an optional YAML file, and
// CGP_-prefixed environment variables, in that order of precedence.
//
// The Config type names the release repository, the tag to deploy, the
// installation root and destination directories, and the testing overrides
// (local source directory, forced OS/arch).
package config
