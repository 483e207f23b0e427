// Package hashutil computes the content digests recorded in the toolkit
// manifest. The digest gates whether a vendored file is safe to overwrite
// during sync, so it uses a collision-resistant algorithm (SHA-256).
//
// The algorithm and the sentinel values live behind this package so the
// digest policy can change without touching the manifest or drift code.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const (
	// SentinelFileMissing is recorded when the source path does not exist.
	SentinelFileMissing = "file-missing"

	// SentinelNoHashTool is recorded when no digest primitive is available.
	// An in-process SHA-256 is always available, so new manifests never
	// contain this value, but entries written by older tooling may.
	SentinelNoHashTool = "no-hash-tool"
)

// FileDigest returns the hex-encoded SHA-256 digest of the file at path.
// A missing path yields SentinelFileMissing rather than an error: callers
// only need the value to answer "has this changed?", and a missing source
// must compare unequal to every real digest.
func FileDigest(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return SentinelFileMissing
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return SentinelFileMissing
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IsSentinel reports whether digest is one of the non-digest sentinel values.
func IsSentinel(digest string) bool {
	return digest == SentinelFileMissing || digest == SentinelNoHashTool
}

// FilesEqual reports whether two files have identical content. Either file
// missing counts as unequal unless both are missing.
func FilesEqual(a, b string) (bool, error) {
	da, err := os.ReadFile(a)
	aMissing := os.IsNotExist(err)
	if err != nil && !aMissing {
		return false, fmt.Errorf("reading %s: %w", a, err)
	}
	db, err := os.ReadFile(b)
	bMissing := os.IsNotExist(err)
	if err != nil && !bMissing {
		return false, fmt.Errorf("reading %s: %w", b, err)
	}
	if aMissing || bMissing {
		return aMissing && bMissing, nil
	}
	return string(da) == string(db), nil
}
