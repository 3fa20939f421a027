// Package window selects the contiguous slice of input orders a run works on.
package window

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/UniversaBlockchain/utnp/internal/domain"
)

// Window is a (skip, take) pair over the ordered input.
type Window struct {
	Skip int
	Take int
}

// Parse validates skip and take against the total record count. An empty
// skip is 0, an empty take is everything after skip.
func Parse(skip, take string, total int) (Window, error) {
	s, err := parseCount("skip", skip, 0)
	if err != nil {
		return Window{}, err
	}
	remaining := total - s
	if remaining < 0 {
		remaining = 0
	}
	n, err := parseCount("number", take, remaining)
	if err != nil {
		return Window{}, err
	}
	w := Window{Skip: s, Take: n}
	if err := w.Check(total); err != nil {
		return Window{}, err
	}
	return w, nil
}

func parseCount(key, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 31)
	if err != nil {
		return 0, &domain.ConfigurationError{Key: key, Reason: "must be a non-negative integer", Err: err}
	}
	return int(v), nil
}

// Check fails when the window does not fit into total records.
func (w Window) Check(total int) error {
	if w.Skip < 0 {
		return &domain.ConfigurationError{Key: "skip", Reason: fmt.Sprintf("must be non-negative, got %d", w.Skip)}
	}
	if w.Take < 0 {
		return &domain.ConfigurationError{Key: "number", Reason: fmt.Sprintf("must be non-negative, got %d", w.Take)}
	}
	if w.Skip+w.Take > total {
		return &domain.ConfigurationError{
			Key:    "skip",
			Reason: fmt.Sprintf("skip+number (%d+%d) must be not more than %d", w.Skip, w.Take, total),
		}
	}
	return nil
}

// Next is the skip value for the following run.
func (w Window) Next() int {
	return w.Skip + w.Take
}

// Position returns the absolute input index of the offset-th windowed record.
func (w Window) Position(offset int) int {
	return w.Skip + offset
}

func (w Window) String() string {
	return fmt.Sprintf("--skip %d --number %d", w.Skip, w.Take)
}

// Apply returns records[skip:skip+take] in input order.
func Apply[T any](w Window, records []T) ([]T, error) {
	if err := w.Check(len(records)); err != nil {
		return nil, err
	}
	return records[w.Skip:w.Next():w.Next()], nil
}
