// Package security guards the paths artifacts are written to.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory checks that filePath stays inside dir. The check
// is lexical: export sinks may be in-memory, so symlinks are not resolved.
func ValidatePathWithinDirectory(filePath, dir string) error {
	relPath, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("path %s is outside %s: %w", filePath, dir, err)
	}
	if relPath == "." {
		return fmt.Errorf("path %s names the directory itself", filePath)
	}

	// Reject paths that escape the directory
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, dir)
	}
	return nil
}
