// Package paths picks local destinations for downloaded files.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxCollisionSuffix bounds the numbered names tried by NextFree.
const MaxCollisionSuffix = 1000

// NextFree returns a path in dir for name that does not exist yet. When
// dir/name is taken, a counter is inserted before the extension:
//
//	report.pdf -> report (1).pdf -> report (2).pdf
func NextFree(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i < MaxCollisionSuffix; i++ {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}
