// Package pathutil provides project-root detection, mtime formatting, and
// text/binary classification shared by the scanner, indexer, and chunker.
package pathutil

import (
	"bytes"
	"os"
	"path/filepath"
	"time"
)

// projectMarkers are checked, in order, against each ancestor directory.
// The first ancestor containing any of these files is the project root.
var projectMarkers = []string{
	"Cargo.toml",
	"package.json",
	"setup.py",
	"pyproject.toml",
	"go.mod",
	"composer.json",
	".git",
}

// FindProjectRoot walks up from startDir looking for a directory containing
// one of the known project markers. If none is found, startDir (absolute)
// is returned unchanged.
func FindProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		for _, marker := range projectMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// sniffSize is the number of leading bytes inspected to classify a file.
const sniffSize = 8192

// IsTextFile reports whether the given byte slice looks like UTF-8 text.
// A NUL byte anywhere disqualifies the sample; otherwise at least 80% of
// the bytes must be printable (tab, newline, carriage return, or >= 0x20).
func IsTextFile(sample []byte) bool {
	if len(sample) == 0 {
		return true
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}

	printable := 0
	for _, b := range sample {
		if b == '\t' || b == '\n' || b == '\r' || b >= 0x20 {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) >= 0.8
}

// SniffFile reads up to sniffSize bytes from path and reports whether the
// content looks like text. Missing files are reported as not-text with a
// nil error, matching the "missing files are not errors" failure policy.
func SniffFile(path string) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffSize)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return true, nil
	}
	return IsTextFile(buf[:n]), nil
}

// FormatModTime renders a modification time as seconds since the Unix epoch.
func FormatModTime(t time.Time) int64 {
	return t.Unix()
}

// ParseModTime converts seconds since the Unix epoch back into a time.Time.
func ParseModTime(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}
