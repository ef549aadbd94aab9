package audit

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors for per-file failure classification.
var (
	// ErrNotFound marks a file that vanished between enumeration and stat.
	ErrNotFound = errors.New("file not found")
	// ErrPermission marks a file whose attributes or content could not be read.
	ErrPermission = errors.New("permission denied")
)

// ConfigError reports an invalid request: an unknown hash algorithm, an empty
// comparison-key set, or a key the snapshots cannot answer. Config errors are
// raised before any work begins and are always fatal.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Msg
}

// NewConfigError formats a ConfigError.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// classifyFileError maps an OS-level error onto the audit sentinel it belongs
// to, preserving the original cause in the chain. IO errors with no more
// specific classification pass through unchanged.
func classifyFileError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermission, err)
	default:
		return fmt.Errorf("reading %s: %v", path, err)
	}
}
