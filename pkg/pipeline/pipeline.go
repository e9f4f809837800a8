// Package pipeline orchestrates Train and Evaluate handlers against
// datasets and model artifacts, enforcing the result-schema contracts
// the handlers must satisfy.
package pipeline

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrInvalidInput marks missing or unusable caller-supplied paths.
	ErrInvalidInput = errors.New("invalid input")
	// ErrHandlerContract marks a handler that claimed success without
	// producing its required output. Never coerced into a best-effort
	// result.
	ErrHandlerContract = errors.New("handler contract violation")
)

// HandlerFailure is a failure the handler itself reported. The message
// is passed through verbatim; it is an expected outcome, not a runtime
// defect.
type HandlerFailure struct {
	Handler string
	Message string
}

func (e *HandlerFailure) Error() string {
	return fmt.Sprintf("handler %s reported failure: %s", e.Handler, e.Message)
}

// IsHandlerFailure reports whether err is a handler-reported failure.
func IsHandlerFailure(err error) bool {
	var hf *HandlerFailure
	return errors.As(err, &hf)
}

func checkDirNonEmpty(dir, what string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidInput, what, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s %s is not a directory", ErrInvalidInput, what, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidInput, what, dir, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s %s is empty", ErrInvalidInput, what, dir)
	}
	return nil
}

func checkFile(path, what string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidInput, what, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s %s is a directory", ErrInvalidInput, what, path)
	}
	return nil
}
