package audit

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/UniversaBlockchain/utnp/internal/domain"
)

// Summary describes a journal.
type Summary struct {
	Entries int
	// Runs lists run identifiers in first-seen order.
	Runs []string
	// Highest is the largest position journaled, -1 when empty.
	Highest int
	// NextSkip is the --skip value that resumes after the journaled work.
	NextSkip int
}

// Summarize scans the entries of a journal.
func Summarize(entries []domain.AuditEntry) Summary {
	s := Summary{Entries: len(entries), Highest: -1}
	seen := make(map[string]struct{})
	for _, e := range entries {
		if _, ok := seen[e.Run]; !ok {
			seen[e.Run] = struct{}{}
			s.Runs = append(s.Runs, e.Run)
		}
		if e.Position > s.Highest {
			s.Highest = e.Position
		}
	}
	s.NextSkip = s.Highest + 1
	return s
}

// Mismatch is a journal entry that disagrees with the input document.
type Mismatch struct {
	Entry  domain.AuditEntry
	Reason string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("skip %d (run %s, uuid %s): %s", m.Entry.Position, m.Entry.Run, m.Entry.ID, m.Reason)
}

// CrossCheck compares every entry against the input record at its position.
func CrossCheck(entries []domain.AuditEntry, records []domain.OrderRecord) []Mismatch {
	var out []Mismatch
	for _, e := range entries {
		if e.Position < 0 || e.Position >= len(records) {
			out = append(out, Mismatch{Entry: e, Reason: fmt.Sprintf("position outside input of %d orders", len(records))})
			continue
		}
		rec := records[e.Position]
		switch {
		case rec.ID != e.ID:
			out = append(out, Mismatch{Entry: e, Reason: fmt.Sprintf("uuid differs, input has %s", rec.ID)})
		case rec.Address != e.Address:
			out = append(out, Mismatch{Entry: e, Reason: fmt.Sprintf("address differs, input has %s", rec.Address)})
		default:
			amt, err := decimal.NewFromString(e.Amount)
			if err != nil {
				out = append(out, Mismatch{Entry: e, Reason: fmt.Sprintf("journaled amount %q is not a decimal", e.Amount)})
			} else if !amt.Equal(rec.Amount) {
				out = append(out, Mismatch{Entry: e, Reason: fmt.Sprintf("amount differs, input has %s", rec.Amount)})
			}
		}
	}
	return out
}
