// Package release talks to GitHub releases: it resolves tags, downloads
// archives and checksum manifests, and verifies archive integrity.
package release
