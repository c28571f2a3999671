// Package diskspace checks free space on the filesystem a download is
// about to be written to.
package diskspace

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Dir            string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space in %s: need %s, have %s available",
		e.Dir, humanize.IBytes(uint64(e.RequiredBytes)), humanize.IBytes(uint64(e.AvailableBytes)))
}

// CheckAvailableSpace returns an InsufficientSpaceError when dir's filesystem
// cannot hold requiredBytes scaled by safetyMargin (1.1 is a 10% buffer).
// If free space cannot be determined the check passes and the write is left
// to fail on its own.
func CheckAvailableSpace(dir string, requiredBytes int64, safetyMargin float64) error {
	available, ok := availableBytes(dir)
	if !ok {
		return nil
	}

	required := int64(float64(requiredBytes) * safetyMargin)
	if available < required {
		return &InsufficientSpaceError{
			Dir:            dir,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// GetAvailableSpace returns the free bytes for dir's filesystem, or 0 if
// unknown.
func GetAvailableSpace(dir string) int64 {
	available, _ := availableBytes(dir)
	return available
}

// IsInsufficientSpaceError checks if err is or wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}
