package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Target identifies an (operating system, architecture) pair after
// architecture normalization. It is the key of the asset tables, so two
// spellings of the same machine always select the same asset.
type Target struct {
	// OS is the lower-cased operating system name (linux, darwin, windows).
	OS string
	// Arch is the normalized architecture token (x86_64, arm64).
	Arch string
}

// ErrUnsupportedPlatform reports an (OS, arch) pair with no published asset.
// Callers surface it before any network access.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// bundleAssets maps every supported target to its release archive name.
// Linux and macOS ship tarballs, Windows ships a zip.
var bundleAssets = map[Target]string{
	{OS: "linux", Arch: "x86_64"}:   "cgp-linux-x86_64.tar.gz",
	{OS: "linux", Arch: "arm64"}:    "cgp-linux-arm64.tar.gz",
	{OS: "darwin", Arch: "x86_64"}:  "cgp-macos-x86_64.tar.gz",
	{OS: "darwin", Arch: "arm64"}:   "cgp-macos-arm64.tar.gz",
	{OS: "windows", Arch: "x86_64"}: "cgp-windows-x86_64.zip",
}

// deployAssets maps every supported target to the raw deployer binary
// published alongside the bundle, used by self-update.
var deployAssets = map[Target]string{
	{OS: "linux", Arch: "x86_64"}:   "cgp-deploy-linux-x86_64",
	{OS: "linux", Arch: "arm64"}:    "cgp-deploy-linux-arm64",
	{OS: "darwin", Arch: "x86_64"}:  "cgp-deploy-macos-x86_64",
	{OS: "darwin", Arch: "arm64"}:   "cgp-deploy-macos-arm64",
	{OS: "windows", Arch: "x86_64"}: "cgp-deploy-windows-x86_64.exe",
}

// Detect returns the target for the current process. Non-empty overrides
// replace the runtime values; they exist for deterministic tests and for
// preparing installs for another machine.
func Detect(osOverride, archOverride string) Target {
	osName := osOverride
	if osName == "" {
		osName = runtime.GOOS
	}

	arch := archOverride
	if arch == "" {
		arch = runtime.GOARCH
	}

	return Target{
		OS:   strings.ToLower(strings.TrimSpace(osName)),
		Arch: NormalizeArch(arch),
	}
}

// NormalizeArch folds the common spellings of the two supported architecture
// families into canonical tokens; anything else passes through lower-cased.
func NormalizeArch(machine string) string {
	m := strings.ToLower(strings.TrimSpace(machine))
	switch m {
	case "x86_64", "amd64":
		return "x86_64"
	case "aarch64", "arm64":
		return "arm64"
	}

	return m
}

// BundleAsset returns the release archive name for the target.
func (t Target) BundleAsset() (string, error) {
	asset, ok := bundleAssets[t]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", t.OS, t.Arch, ErrUnsupportedPlatform)
	}

	return asset, nil
}

// DeployAsset returns the self-update binary asset name for the target.
func (t Target) DeployAsset() (string, error) {
	asset, ok := deployAssets[t]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", t.OS, t.Arch, ErrUnsupportedPlatform)
	}

	return asset, nil
}

// ExecutableName returns the installed executable's filename for the target.
func (t Target) ExecutableName() string {
	if t.OS == "windows" {
		return "cgp.exe"
	}

	return "cgp"
}

// BundleExecutablePath returns the executable's location inside an extracted
// bundle, relative to the bundle root. Every published archive places the
// executable one directory deep.
func (t Target) BundleExecutablePath() string {
	return "cgp/" + t.ExecutableName()
}

// String renders the target as os/arch for logs and error messages.
func (t Target) String() string {
	return t.OS + "/" + t.Arch
}
