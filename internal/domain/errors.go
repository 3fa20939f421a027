package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Process exit codes returned by ExitCode.
const (
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitInput         = 3
	ExitSubmission    = 4
)

// ErrEmptyBatch is returned when a batch with no transfers reaches the chain layer.
var ErrEmptyBatch = errors.New("bulksend: empty batch")

// ConfigurationError reports a bad flag, a missing mandatory setting or a
// skip/take window outside the input.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration: %q %s", e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ParseError reports a malformed input document.
type ParseError struct {
	Source string
	// Position is the zero-based order index, -1 for document level errors.
	Position int
	Field    string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse")
	if e.Source != "" {
		b.WriteString(" " + e.Source)
	}
	if e.Position >= 0 {
		fmt.Fprintf(&b, ": order %d", e.Position)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	b.WriteString(": " + e.Reason)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// KeyError reports an unreadable or malformed private key file.
type KeyError struct {
	Path   string
	Reason string
	Err    error
}

func (e *KeyError) Error() string {
	msg := fmt.Sprintf("private key %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *KeyError) Unwrap() error { return e.Err }

// InvalidAmountError reports a non-positive, malformed or unrepresentable amount.
type InvalidAmountError struct {
	// Position is the zero-based order index, -1 when not tied to an order.
	Position int
	Amount   string
	Reason   string
}

func (e *InvalidAmountError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("invalid amount %q at order %d: %s", e.Amount, e.Position, e.Reason)
	}
	return fmt.Sprintf("invalid amount %q: %s", e.Amount, e.Reason)
}

// SubmissionError summarizes the batches of a run that did not land.
type SubmissionError struct {
	Failed []BatchFailure
}

// BatchFailure is one failed batch.
type BatchFailure struct {
	Index int
	Start int
	Size  int
	Err   error
}

func (e *SubmissionError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("batch %d [%d:%d): %v", f.Index, f.Start, f.Start+f.Size, f.Err))
	}
	return fmt.Sprintf("%d batch(es) failed: %s", len(e.Failed), strings.Join(parts, "; "))
}

// Unwrap exposes the per-batch causes to errors.Is and errors.As.
func (e *SubmissionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var (
		cfgErr    *ConfigurationError
		parseErr  *ParseError
		keyErr    *KeyError
		amountErr *InvalidAmountError
		subErr    *SubmissionError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfiguration
	case errors.As(err, &parseErr), errors.As(err, &keyErr), errors.As(err, &amountErr):
		return ExitInput
	case errors.As(err, &subErr):
		return ExitSubmission
	default:
		return ExitFailure
	}
}
