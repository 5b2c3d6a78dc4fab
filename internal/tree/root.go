// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MarkerFile is the name of the file that marks the root of a tree.
const MarkerFile = "DEV_ROOT"

// ErrRootNotFound is the sentinel error wrapped by RootNotFoundError.
var ErrRootNotFound = errors.New("tree root not found")

// RootNotFoundError is returned when no ancestor of Start holds a marker file.
type RootNotFoundError struct {
	Start string
}

// Error implements the error interface.
func (e *RootNotFoundError) Error() string {
	return fmt.Sprintf("no %s found in %s or any parent directory", MarkerFile, e.Start)
}

// Unwrap returns ErrRootNotFound so callers can use errors.Is for programmatic detection.
func (e *RootNotFoundError) Unwrap() error { return ErrRootNotFound }

// FindRoot walks upward from start until it finds a directory containing
// MarkerFile and returns that directory as an absolute path.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	for {
		info, statErr := os.Stat(filepath.Join(dir, MarkerFile))
		if statErr == nil && !info.IsDir() {
			return dir, nil
		}
		if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
			return "", fmt.Errorf("check %s: %w", dir, statErr)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &RootNotFoundError{Start: start}
		}
		dir = parent
	}
}
