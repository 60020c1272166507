package embed

import (
	"os"
	"path/filepath"
)

// cacheDirFor returns a subdirectory under the user's cache directory,
// creating it if necessary. Used by local-model providers that download
// weights once and reuse them across runs.
func cacheDirFor(app string, parts ...string) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	segments := append([]string{base, app}, parts...)
	dir := filepath.Join(segments...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
