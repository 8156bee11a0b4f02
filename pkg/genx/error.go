package genx

import (
	"errors"
	"fmt"
)

// ErrGenerationFailed matches every failure reported by a Service. Callers
// test with errors.Is(err, ErrGenerationFailed).
var ErrGenerationFailed = errors.New("genx: generation failed")

// Status classifies a generation failure.
type Status int

const (
	StatusError Status = iota
	StatusBlocked
	StatusTruncated
	StatusEmpty
	StatusMismatch
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusBlocked:
		return "blocked"
	case StatusTruncated:
		return "truncated"
	case StatusEmpty:
		return "empty"
	case StatusMismatch:
		return "mismatch"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// GenerationError is the single error type returned by Service
// implementations.
type GenerationError struct {
	Provider string
	Mode     Mode
	Status   Status
	Err      error
}

func (e *GenerationError) Error() string {
	msg := "genx: generate " + e.Mode.String()
	if e.Provider != "" {
		msg += " via " + e.Provider
	}
	msg += ": " + e.Status.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// Failed wraps err as a StatusError GenerationError. An err that already is
// a GenerationError is returned unchanged.
func Failed(provider string, mode Mode, err error) error {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return err
	}
	return &GenerationError{Provider: provider, Mode: mode, Status: StatusError, Err: err}
}

func Blocked(provider string, mode Mode, refusal string) error {
	return &GenerationError{
		Provider: provider,
		Mode:     mode,
		Status:   StatusBlocked,
		Err:      fmt.Errorf("blocked: %s", refusal),
	}
}

func Truncated(provider string, mode Mode) error {
	return &GenerationError{
		Provider: provider,
		Mode:     mode,
		Status:   StatusTruncated,
		Err:      errors.New("max tokens reached"),
	}
}

func Empty(provider string, mode Mode) error {
	return &GenerationError{
		Provider: provider,
		Mode:     mode,
		Status:   StatusEmpty,
		Err:      errors.New("no content"),
	}
}
