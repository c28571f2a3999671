// Package pathutil resolves user-supplied local paths.
package pathutil

import (
	"os"
	"path/filepath"
)

// ExpandHome resolves a leading "~" or "~/" against the user's home directory.
// Other paths are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && (len(path) < 2 || path[:2] != "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// ResolveAbsolutePath makes path absolute and resolves symlinks in the part
// of it that already exists. Missing trailing components are appended as
// given, so a download directory that has not been created yet still resolves.
func ResolveAbsolutePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	absPath, err := filepath.Abs(ExpandHome(path))
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}

	current := absPath
	var missing []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absPath, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
