// Package audit journals every order a run is about to attempt.
//
// The journal is written before the first batch is submitted and is never
// rewritten, so that an operator can reconcile what was attempted against
// what landed on-chain and derive the --skip value of the next run.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/UniversaBlockchain/utnp/internal/domain"
)

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entries []domain.AuditEntry) error
}

var (
	_ Recorder = (*Journal)(nil)
	_ Recorder = (*Memory)(nil)
)

// Entries builds one entry per windowed record. skip is the absolute position
// of windowed[0].
func Entries(run string, skip int, windowed []domain.OrderRecord, now time.Time) []domain.AuditEntry {
	entries := make([]domain.AuditEntry, 0, len(windowed))
	for i, rec := range windowed {
		entries = append(entries, domain.AuditEntry{
			Run:        run,
			Position:   skip + i,
			ID:         rec.ID,
			Address:    rec.Address,
			Amount:     rec.Amount.String(),
			RecordedAt: now.UTC(),
		})
	}
	return entries
}

// Journal is an append-only JSON-lines file.
type Journal struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenJournal opens or creates the journal at path for appending.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit journal %s: %w", path, err)
	}
	return &Journal{path: path, f: f}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Record appends entries and syncs the file before returning.
func (j *Journal) Record(ctx context.Context, entries []domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return fmt.Errorf("audit journal %s is closed", j.path)
	}
	w := bufio.NewWriter(j.f)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode audit entry %d: %w", e.Position, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write audit journal %s: %w", j.path, err)
	}
	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit journal %s: %w", j.path, err)
	}
	return nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

// Memory keeps entries in memory. It backs dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	// Err, when set, is returned from Record instead of storing.
	Err error
}

func (m *Memory) Record(_ context.Context, entries []domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.entries = append(m.entries, entries...)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (m *Memory) Entries() []domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEntry(nil), m.entries...)
}

// Read decodes a journal stream. Blank lines are ignored.
func Read(r io.Reader) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var e domain.AuditEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, &domain.ParseError{Position: -1, Reason: fmt.Sprintf("journal line %d", line), Err: err}
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, &domain.ParseError{Position: -1, Reason: "cannot read journal", Err: err}
	}
	return entries, nil
}

// ReadFile reads the journal at path.
func ReadFile(path string) ([]domain.AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ParseError{Source: path, Position: -1, Reason: "cannot open journal", Err: err}
	}
	defer f.Close()
	entries, err := Read(f)
	if pe, ok := err.(*domain.ParseError); ok {
		pe.Source = path
	}
	return entries, err
}
