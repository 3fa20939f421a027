package sender

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UniversaBlockchain/utnp/internal/audit"
	"github.com/UniversaBlockchain/utnp/internal/domain"
	"github.com/UniversaBlockchain/utnp/internal/window"
)

var testToken = ethcmn.HexToAddress("0x9e3319636e2126e3c0bc9e3134AEC5e1508A46c7")

type fakeSubmitter struct {
	calls [][]domain.Transfer
	// fail maps a call number to the error it returns.
	fail map[int]error
	// after, when set, runs once the given call number returns.
	after     func(call int)
	recorder  *audit.Memory
	journaled []int
}

func (f *fakeSubmitter) BatchTransfer(_ context.Context, token ethcmn.Address, transfers []domain.Transfer) (ethcmn.Hash, error) {
	if token != testToken {
		return ethcmn.Hash{}, errors.New("wrong token")
	}
	call := len(f.calls)
	f.calls = append(f.calls, transfers)
	if f.recorder != nil {
		f.journaled = append(f.journaled, len(f.recorder.Entries()))
	}
	if f.after != nil {
		defer f.after(call)
	}
	if err, ok := f.fail[call]; ok {
		return ethcmn.Hash{}, err
	}
	return ethcmn.BigToHash(big.NewInt(int64(call + 1))), nil
}

func records(amounts ...string) []domain.OrderRecord {
	out := make([]domain.OrderRecord, len(amounts))
	for i, a := range amounts {
		out[i] = domain.OrderRecord{
			ID:      "uuid-" + string(rune('a'+i)),
			Address: ethcmn.BigToAddress(big.NewInt(int64(i + 1))).Hex(),
			Amount:  decimal.RequireFromString(a),
		}
	}
	return out
}

func newTestController(t *testing.T, sub Submitter, rec audit.Recorder, batchSize int, buf *bytes.Buffer) *Controller {
	var logger log.Logger
	if buf != nil {
		logger = log.NewLogger(log.JSONHandler(buf))
	} else {
		logger = log.NewLogger(log.DiscardHandler())
	}
	c, err := NewController(Config{Token: testToken, Decimals: 18, BatchSize: batchSize, RunID: "run-1"}, sub, rec, logger)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }
	return c
}

// logValues collects key from every JSON log line whose message is msg.
func logValues(t *testing.T, buf *bytes.Buffer, msg, key string) []any {
	t.Helper()
	var out []any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line["msg"] == msg {
			out = append(out, line[key])
		}
	}
	return out
}

func TestRunPartitionsInOrder(t *testing.T) {
	var buf bytes.Buffer
	rec := &audit.Memory{}
	sub := &fakeSubmitter{recorder: rec}
	c := newTestController(t, sub, rec, 2, &buf)

	recs := records("1", "2.5", "0.000000000000000001")
	report, err := c.Run(context.Background(), recs, window.Window{Skip: 0, Take: 3})
	require.NoError(t, err)

	require.Len(t, sub.calls, 2)
	require.Len(t, sub.calls[0], 2)
	require.Len(t, sub.calls[1], 1)
	assert.Equal(t, recs[0].Request().Recipient(), sub.calls[0][0].To)
	assert.Equal(t, "1000000000000000000", sub.calls[0][0].Value.String())
	assert.Equal(t, "2500000000000000000", sub.calls[0][1].Value.String())
	assert.Equal(t, recs[2].Request().Recipient(), sub.calls[1][0].To)
	assert.Equal(t, "1", sub.calls[1][0].Value.String())

	assert.Equal(t, 3, report.NextSkip)
	assert.Equal(t, 2, report.Batches)
	assert.True(t, decimal.RequireFromString("3.500000000000000001").Equal(report.Total))
	require.Len(t, report.Submitted, 2)
	assert.Equal(t, 2, report.Submitted[1].Start)
	assert.Empty(t, report.Failed)
	assert.False(t, report.Interrupted())
	assert.Equal(t, uint64(2), report.Throughput.Batches)
	assert.Equal(t, uint64(3), report.Throughput.Transfers)

	// the whole window is journaled before the first submission
	assert.Equal(t, []int{3, 3}, sub.journaled)

	// orders still to send when each batch starts
	assert.Equal(t, []any{float64(3), float64(1)}, logValues(t, &buf, "Remaining", "orders"))
	assert.Equal(t, []any{float64(2), float64(1)}, logValues(t, &buf, "Remaining", "batches"))
}

func TestExecutePlanWithSkip(t *testing.T) {
	var buf bytes.Buffer
	rec := &audit.Memory{}
	sub := &fakeSubmitter{}
	c := newTestController(t, sub, rec, 2, &buf)

	plan, err := NewPlan(records("1", "1", "1", "1", "1"), window.Window{Skip: 2, Take: 3}, 18, 2)
	require.NoError(t, err)
	assert.Empty(t, rec.Entries())

	report, err := c.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 5, report.NextSkip)
	assert.Len(t, rec.Entries(), 3)
	assert.Len(t, sub.calls, 2)
	assert.Equal(t, []any{float64(3), float64(1)}, logValues(t, &buf, "Remaining", "orders"))
}

func TestNewPlanDefaultsBatchSize(t *testing.T) {
	amounts := make([]string, 101)
	for i := range amounts {
		amounts[i] = "1"
	}
	plan, err := NewPlan(records(amounts...), window.Window{Take: 101}, 18, 0)
	require.NoError(t, err)
	require.Len(t, plan.Batches, 2)
	assert.Equal(t, 100, plan.Batches[0].Size())
	assert.Equal(t, 100, plan.Batches[1].Start)
}

func TestRunJournalsWindowPositions(t *testing.T) {
	rec := &audit.Memory{}
	c := newTestController(t, &fakeSubmitter{}, rec, 100, nil)

	recs := records("1", "2", "3", "4", "5")
	report, err := c.Run(context.Background(), recs, window.Window{Skip: 1, Take: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, report.NextSkip)

	entries := rec.Entries()
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, 1+i, e.Position)
		assert.Equal(t, recs[1+i].ID, e.ID)
		assert.Equal(t, recs[1+i].Address, e.Address)
		assert.Equal(t, recs[1+i].Amount.String(), e.Amount)
		assert.Equal(t, "run-1", e.Run)
	}
}

func TestRunContinuesPastFailedBatch(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("execution reverted")
	sub := &fakeSubmitter{fail: map[int]error{1: boom}}
	c := newTestController(t, sub, &audit.Memory{}, 1, &buf)

	report, err := c.Run(context.Background(), records("1", "2", "3"), window.Window{Take: 3})
	require.Error(t, err)
	assert.Len(t, sub.calls, 3)

	var subErr *domain.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Len(t, subErr.Failed, 1)
	assert.Equal(t, 1, subErr.Failed[0].Index)
	assert.Equal(t, 1, subErr.Failed[0].Start)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, domain.ExitSubmission, domain.ExitCode(err))

	require.Len(t, report.Submitted, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 3, report.NextSkip)

	out := buf.String()
	assert.Contains(t, out, "Batch failed")
	assert.Contains(t, out, "Failed transfer")
	assert.Contains(t, out, "2000000000000000000")
	assert.Contains(t, out, "Next launch should use --skip 3")
}

func TestRunWindowOutOfRange(t *testing.T) {
	rec := &audit.Memory{}
	sub := &fakeSubmitter{}
	c := newTestController(t, sub, rec, 100, nil)

	_, err := c.Run(context.Background(), records("1", "2"), window.Window{Skip: 1, Take: 2})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, rec.Entries())
	assert.Empty(t, sub.calls)
}

func TestRunInvalidAmountSendsNothing(t *testing.T) {
	rec := &audit.Memory{}
	sub := &fakeSubmitter{}
	c := newTestController(t, sub, rec, 100, nil)

	_, err := c.Run(context.Background(), records("1", "0.0000000000000000001"), window.Window{Take: 2})
	var amountErr *domain.InvalidAmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, 1, amountErr.Position)
	assert.Empty(t, rec.Entries())
	assert.Empty(t, sub.calls)
}

func TestRunAuditFailureSendsNothing(t *testing.T) {
	boom := errors.New("disk full")
	sub := &fakeSubmitter{}
	c := newTestController(t, sub, &audit.Memory{Err: boom}, 100, nil)

	_, err := c.Run(context.Background(), records("1"), window.Window{Take: 1})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, sub.calls)
}

func TestRunEmptyWindow(t *testing.T) {
	sub := &fakeSubmitter{}
	c := newTestController(t, sub, &audit.Memory{}, 100, nil)

	report, err := c.Run(context.Background(), records("1", "2"), window.Window{Skip: 2, Take: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Batches)
	assert.Equal(t, 2, report.NextSkip)
	assert.Empty(t, sub.calls)
}

func TestRunCancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &fakeSubmitter{after: func(call int) {
		if call == 0 {
			cancel()
		}
	}}
	c := newTestController(t, sub, &audit.Memory{}, 1, nil)

	report, err := c.Run(ctx, records("1", "2", "3"), window.Window{Take: 3})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sub.calls, 1)
	assert.Equal(t, 2, report.Skipped)
	assert.True(t, report.Interrupted())
	assert.Len(t, report.Submitted, 1)
}

func TestRunPacesBatches(t *testing.T) {
	sub := &fakeSubmitter{}
	c, err := NewController(Config{Token: testToken, Decimals: 18, BatchSize: 1, Interval: 20 * time.Millisecond},
		sub, &audit.Memory{}, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Run(context.Background(), records("1", "2", "3"), window.Window{Take: 3})
	require.NoError(t, err)
	assert.Len(t, sub.calls, 3)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestNewControllerValidation(t *testing.T) {
	logger := log.NewLogger(log.DiscardHandler())

	c, err := NewController(Config{}, &fakeSubmitter{}, &audit.Memory{}, logger)
	require.NoError(t, err)
	assert.Equal(t, 100, c.cfg.BatchSize)

	_, err = NewController(Config{BatchSize: -1}, &fakeSubmitter{}, &audit.Memory{}, logger)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "batch-size", cfgErr.Key)

	_, err = NewController(Config{Interval: -time.Second}, &fakeSubmitter{}, &audit.Memory{}, logger)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "batch-interval", cfgErr.Key)

	_, err = NewController(Config{}, nil, &audit.Memory{}, logger)
	require.Error(t, err)
}

func TestPrepareBatchStarts(t *testing.T) {
	c := newTestController(t, &fakeSubmitter{}, &audit.Memory{}, 2, nil)
	plan, err := c.Prepare(records("1", "1", "1", "1", "1", "1", "1"), window.Window{Skip: 2, Take: 5})
	require.NoError(t, err)
	require.Len(t, plan.Batches, 3)
	for i, want := range []struct{ start, size int }{{2, 2}, {4, 2}, {6, 1}} {
		assert.Equal(t, i, plan.Batches[i].Index)
		assert.Equal(t, want.start, plan.Batches[i].Start)
		assert.Equal(t, want.size, plan.Batches[i].Size())
		assert.Len(t, plan.Batches[i].Requests, want.size)
	}
}
