package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UniversaBlockchain/utnp/internal/domain"
)

const addr = "0x9e3319636e2126e3c0bc9e3134AEC5e1508A46c7"

func records(n int) []domain.OrderRecord {
	out := make([]domain.OrderRecord, n)
	for i := range out {
		out[i] = domain.OrderRecord{
			ID:      "order-" + string(rune('a'+i)),
			Address: addr,
			Amount:  decimal.New(int64(i+1), -1),
		}
	}
	return out
}

func TestEntriesPositions(t *testing.T) {
	all := records(6)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	entries := Entries("run-1", 2, all[2:5], now)

	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, 2+i, e.Position)
		assert.Equal(t, all[2+i].ID, e.ID)
		assert.Equal(t, all[2+i].Amount.String(), e.Amount)
		assert.Equal(t, "run-1", e.Run)
		assert.Equal(t, now, e.RecordedAt)
	}
	assert.Empty(t, Entries("run-1", 0, nil, now))
}

func TestJournalAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	now := time.Now()
	all := records(4)

	j, err := OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), Entries("r1", 0, all[:2], now)))
	require.NoError(t, j.Close())

	j, err = OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), Entries("r2", 2, all[2:], now)))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, e := range got {
		assert.Equal(t, i, e.Position)
	}
	assert.Equal(t, "r1", got[1].Run)
	assert.Equal(t, "r2", got[2].Run)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(raw), "\n"))
	assert.Contains(t, string(raw), `"utnp_address":"`+addr+`"`)
}

func TestJournalClosed(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.Error(t, j.Record(context.Background(), Entries("r", 0, records(1), time.Now())))
}

func TestJournalCancelledContext(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	defer j.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, j.Record(ctx, nil), context.Canceled)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(strings.NewReader("{\"run\":\"x\",\"skip\":0}\n\nnot json\n"))
	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "journal line 3")
}

func TestMemory(t *testing.T) {
	m := &Memory{}
	require.NoError(t, m.Record(context.Background(), Entries("r", 0, records(2), time.Now())))
	assert.Len(t, m.Entries(), 2)

	m.Err = errors.New("disk full")
	require.Error(t, m.Record(context.Background(), nil))
	assert.Len(t, m.Entries(), 2)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{Highest: -1, NextSkip: 0}, Summarize(nil))

	all := records(5)
	entries := append(Entries("r1", 0, all[:3], time.Now()), Entries("r2", 3, all[3:], time.Now())...)
	s := Summarize(entries)
	assert.Equal(t, 5, s.Entries)
	assert.Equal(t, []string{"r1", "r2"}, s.Runs)
	assert.Equal(t, 4, s.Highest)
	assert.Equal(t, 5, s.NextSkip)
}

func TestCrossCheck(t *testing.T) {
	all := records(4)
	entries := Entries("r", 0, all, time.Now())
	assert.Empty(t, CrossCheck(entries, all))

	entries[1].ID = "someone-else"
	entries[2].Amount = "9.9"
	entries[3].Address = "0x14dC79964da2C08b23698B3D3cc7Ca32193d9955"
	entries = append(entries, domain.AuditEntry{Run: "r", Position: 10, ID: "ghost"})

	mismatches := CrossCheck(entries, all)
	require.Len(t, mismatches, 4)
	assert.Contains(t, mismatches[0].Reason, "uuid differs")
	assert.Contains(t, mismatches[1].Reason, "amount differs")
	assert.Contains(t, mismatches[2].Reason, "address differs")
	assert.Contains(t, mismatches[3].String(), "skip 10")
}
