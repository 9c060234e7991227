package security

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrInvalidPath   = errors.New("invalid file path")
)

// ValidateFilePath rejects empty paths and paths with parent references.
// When baseDir is set the path must also resolve inside it.
func ValidateFilePath(path, baseDir string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}

	cleanPath := filepath.Clean(path)
	if hasParentRef(cleanPath) {
		return ErrPathTraversal
	}
	if baseDir == "" {
		return nil
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || hasParentRef(rel) {
		return ErrPathTraversal
	}
	return nil
}

func hasParentRef(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
