package release

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrChecksumMismatch is returned when a downloaded archive does not match
// the digest published in the checksums manifest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// minDigestLength guards against picking up short non-digest tokens; a hex
// SHA-256 digest is 64 characters, MD5 would be 32.
const minDigestLength = 32

// Manifest maps asset filenames to their published hex digests.
type Manifest struct {
	digests map[string]string
}

// ParseManifest reads a checksums.txt manifest.
// Blank lines and "#" comments are skipped, as are lines without at least a
// digest and a filename. The digest is the first field lowercased, the
// filename is the last field, so both "digest  name" and BSD-style
// "SHA256 (name) = digest" reversed layouts with extra columns survive.
// Parsing never fails; a malformed manifest is simply an empty one.
func ParseManifest(r io.Reader) Manifest {
	manifest := Manifest{digests: make(map[string]string)}
	if r == nil {
		return manifest
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		digest := strings.ToLower(fields[0])
		name := fields[len(fields)-1]

		if len(digest) >= minDigestLength && name != "" {
			manifest.digests[name] = digest
		}
	}

	return manifest
}

// Len reports how many assets the manifest covers.
func (m Manifest) Len() int {
	return len(m.digests)
}

// DigestFor looks up the published digest for an asset.
// The second return value distinguishes "asset not listed" from a mismatch.
func (m Manifest) DigestFor(name string) (string, bool) {
	digest, ok := m.digests[name]

	return digest, ok
}

// Verify checks the archive at path against the manifest entry for assetName.
// When the manifest has no entry for the asset it returns ("", nil) so the
// caller can log that verification was skipped. A digest that does not match
// wraps ErrChecksumMismatch and names both digests.
func (m Manifest) Verify(path, assetName string) (string, error) {
	expected, ok := m.DigestFor(assetName)
	if !ok {
		return "", nil
	}

	actual, err := FileDigest(path)
	if err != nil {
		return "", err
	}

	if !strings.EqualFold(expected, actual) {
		return "", fmt.Errorf("%s: expected %s, got %s: %w", assetName, expected, actual, ErrChecksumMismatch)
	}

	return actual, nil
}

// FileDigest streams the file at path through SHA-256 and returns the hex digest.
func FileDigest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
