package translate

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means the selected engine has no API key.
	ErrMissingCredential = errors.New("missing credential")
	// ErrUnknownEngine means no oracle is registered under the given name.
	ErrUnknownEngine = errors.New("unknown translation engine")
)

// ConfigError is fatal: the oracle cannot be used, so no batch is attempted.
type ConfigError struct {
	Engine string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configure %s: %v", e.Engine, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
