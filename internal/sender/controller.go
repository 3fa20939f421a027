// Package sender drives a bulk transfer run: window, normalize, journal,
// partition and submit, one batch at a time.
package sender

import (
	"context"
	"errors"
	"fmt"
	"time"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/UniversaBlockchain/utnp/internal/audit"
	"github.com/UniversaBlockchain/utnp/internal/batch"
	"github.com/UniversaBlockchain/utnp/internal/domain"
	"github.com/UniversaBlockchain/utnp/internal/stats"
	"github.com/UniversaBlockchain/utnp/internal/units"
	"github.com/UniversaBlockchain/utnp/internal/window"
)

// Submitter moves one batch of transfers on-chain and reports its outcome.
type Submitter interface {
	BatchTransfer(ctx context.Context, token ethcmn.Address, transfers []domain.Transfer) (ethcmn.Hash, error)
}

// Config is fixed for the whole run.
type Config struct {
	Token     ethcmn.Address
	Decimals  uint8
	BatchSize int
	RunID     string
	// Interval is the minimum gap between two submissions. Zero disables pacing.
	Interval time.Duration
}

// Controller runs the sequential send loop.
type Controller struct {
	cfg       Config
	submitter Submitter
	recorder  audit.Recorder
	limiter   *rate.Limiter
	log       log.Logger
	now       func() time.Time
}

// NewController validates cfg and builds a controller.
func NewController(cfg Config, submitter Submitter, recorder audit.Recorder, logger log.Logger) (*Controller, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = batch.DefaultSize
	}
	if cfg.BatchSize < 0 {
		return nil, &domain.ConfigurationError{Key: "batch-size", Reason: "must be positive"}
	}
	if cfg.Interval < 0 {
		return nil, &domain.ConfigurationError{Key: "batch-interval", Reason: "must not be negative"}
	}
	if submitter == nil || recorder == nil {
		return nil, errors.New("sender: submitter and recorder are required")
	}
	if logger == nil {
		logger = log.Root()
	}
	c := &Controller{
		cfg:       cfg,
		submitter: submitter,
		recorder:  recorder,
		log:       logger.With("run", cfg.RunID),
		now:       time.Now,
	}
	if cfg.Interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.Interval), 1)
	}
	return c, nil
}

// Plan is the windowed, normalized and partitioned work of a run.
type Plan struct {
	Window  window.Window
	Total   decimal.Decimal
	Records []domain.OrderRecord
	Batches []domain.Batch
}

// NewPlan applies w to records, normalizes every amount with decimals and
// partitions the result into batches of size transfers. A zero size selects
// batch.DefaultSize.
func NewPlan(records []domain.OrderRecord, w window.Window, decimals uint8, size int) (*Plan, error) {
	if size == 0 {
		size = batch.DefaultSize
	}
	windowed, err := window.Apply(w, records)
	if err != nil {
		return nil, err
	}

	requests := make([]domain.TransferRequest, len(windowed))
	transfers := make([]domain.Transfer, len(windowed))
	amounts := make([]decimal.Decimal, len(windowed))
	for i, rec := range windowed {
		value, err := units.NormalizeAt(w.Position(i), rec.Amount, decimals)
		if err != nil {
			return nil, err
		}
		req := rec.Request()
		requests[i] = req
		transfers[i] = domain.Transfer{To: req.Recipient(), Value: value}
		amounts[i] = rec.Amount
	}

	reqChunks, err := batch.Partition(requests, size)
	if err != nil {
		return nil, &domain.ConfigurationError{Key: "batch-size", Reason: "invalid", Err: err}
	}
	txChunks, _ := batch.Partition(transfers, size)

	batches := make([]domain.Batch, len(reqChunks))
	for i := range reqChunks {
		batches[i] = domain.Batch{
			Index:     i,
			Start:     w.Position(i * size),
			Requests:  reqChunks[i],
			Transfers: txChunks[i],
		}
	}
	return &Plan{Window: w, Total: units.Sum(amounts), Records: windowed, Batches: batches}, nil
}

// Prepare builds the plan of records[w.Skip:w.Skip+w.Take] with the
// controller's decimals and batch size. Nothing is recorded or sent.
func (c *Controller) Prepare(records []domain.OrderRecord, w window.Window) (*Plan, error) {
	return NewPlan(records, w, c.cfg.Decimals, c.cfg.BatchSize)
}

// Record journals every windowed order of plan.
func (c *Controller) Record(ctx context.Context, plan *Plan) error {
	entries := audit.Entries(c.cfg.RunID, plan.Window.Skip, plan.Records, c.now())
	if err := c.recorder.Record(ctx, entries); err != nil {
		return fmt.Errorf("failed to record audit entries: %w", err)
	}
	return nil
}

// Run sends records[w.Skip:w.Skip+w.Take] in batches. A failed batch is
// logged and skipped, the remaining batches are still attempted. The report
// is returned alongside a *domain.SubmissionError when any batch failed.
func (c *Controller) Run(ctx context.Context, records []domain.OrderRecord, w window.Window) (*Report, error) {
	plan, err := c.Prepare(records, w)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, plan)
}

// Execute journals and sends a prepared plan.
func (c *Controller) Execute(ctx context.Context, plan *Plan) (*Report, error) {
	w := plan.Window
	report := &Report{
		Run:      c.cfg.RunID,
		Window:   w,
		NextSkip: w.Next(),
		Total:    plan.Total,
		Batches:  len(plan.Batches),
	}
	c.log.Info(fmt.Sprintf("Next launch should use --skip %d", report.NextSkip), "window", w.String())
	c.log.Info("Total amount to send", "amount", plan.Total.String(), "orders", len(plan.Records), "batches", len(plan.Batches))

	if err := c.Record(ctx, plan); err != nil {
		return nil, err
	}

	throughput := stats.NewTracker(c.log, 0)
	var interrupted error
	for i, b := range plan.Batches {
		if err := c.pace(ctx); err != nil {
			interrupted = err
			report.Skipped = len(plan.Batches) - i
			c.log.Warn("Run interrupted", "err", err, "skipped", report.Skipped)
			break
		}
		c.log.Info("Remaining", "orders", len(plan.Records)-(b.Start-w.Skip), "batches", len(plan.Batches)-i,
			"batch", b.Index, "from", b.Start, "to", b.End())

		hash, err := c.submitter.BatchTransfer(ctx, c.cfg.Token, b.Transfers)
		result := BatchResult{Index: b.Index, Start: b.Start, Size: b.Size(), TxHash: hash, Err: err}
		if err != nil {
			report.Failed = append(report.Failed, result)
			c.logFailure(b, hash, err)
			continue
		}
		report.Submitted = append(report.Submitted, result)
		throughput.RecordBatch(b.Size())
		c.log.Info("Batch submitted", "batch", b.Index, "size", b.Size(), "tx", hash)
	}

	report.Throughput = throughput.Snapshot()
	throughput.Log("Throughput")
	c.log.Info("Run finished", "submitted", len(report.Submitted), "failed", len(report.Failed), "skipped", report.Skipped, "nextSkip", report.NextSkip)
	if err := report.Err(); err != nil {
		return report, err
	}
	if interrupted != nil {
		return report, fmt.Errorf("run interrupted with %d batch(es) unsent: %w", report.Skipped, interrupted)
	}
	return report, nil
}

// pace blocks until the next batch may be sent.
func (c *Controller) pace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Controller) logFailure(b domain.Batch, hash ethcmn.Hash, err error) {
	c.log.Error("Batch failed", "batch", b.Index, "from", b.Start, "to", b.End(), "tx", hash, "err", err)
	for i, req := range b.Requests {
		c.log.Error("Failed transfer",
			"skip", b.Start+i,
			"to", req.To,
			"amount", req.Amount.String(),
			"value", b.Transfers[i].Value)
	}
}
