// Package platform maps (operating system, architecture) pairs to release
// asset names over a closed table of supported targets.
//
// Architecture spellings are normalized first (amd64 and x86_64 collapse,
// aarch64 and arm64 collapse), so the asset choice is a pure function of the
// pair. Unsupported pairs fail with ErrUnsupportedPlatform before any
// network traffic happens.
package platform
