package state

import (
	"errors"
	"path/filepath"
	"strings"
)

// Path validation errors.
var (
	ErrPathEscape   = errors.New("path escapes base directory")
	ErrAbsolutePath = errors.New("absolute paths not allowed")
	ErrInvalidPath  = errors.New("invalid path")
)

// SafeJoin joins a base directory with a relative path, ensuring the result
// stays within the base directory. Server-supplied filenames pass through
// here before anything touches the disk.
func SafeJoin(baseDir, relativePath string) (string, error) {
	if err := ValidateRelativePath(relativePath); err != nil {
		return "", err
	}

	// Join and clean (this resolves . and .. components)
	joined := filepath.Join(baseDir, relativePath)

	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(absBase, absJoined)
	if err != nil {
		return "", err
	}

	// Reject if path escapes: exactly ".." or starts with "../"
	// Note: "..." or "..foo" are valid filenames, not traversals
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	if rel == "." {
		return "", ErrInvalidPath
	}

	return absJoined, nil
}

// ValidateRelativePath checks that a path is usable as a relative file path:
// non-empty, not absolute, no null bytes.
func ValidateRelativePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	if filepath.IsAbs(path) {
		return ErrAbsolutePath
	}
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	return nil
}
