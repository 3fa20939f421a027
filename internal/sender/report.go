package sender

import (
	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/UniversaBlockchain/utnp/internal/domain"
	"github.com/UniversaBlockchain/utnp/internal/stats"
	"github.com/UniversaBlockchain/utnp/internal/window"
)

// BatchResult is the outcome of one submitted batch.
type BatchResult struct {
	Index  int
	Start  int
	Size   int
	TxHash ethcmn.Hash
	Err    error
}

// Report summarizes a run.
type Report struct {
	Run      string
	Window   window.Window
	NextSkip int
	Total    decimal.Decimal
	Batches  int

	Submitted []BatchResult
	Failed    []BatchResult
	// Skipped counts batches not attempted because the run was interrupted.
	Skipped int
	// Throughput covers the submitted batches only.
	Throughput stats.Snapshot
}

// Err returns a *domain.SubmissionError listing the failed batches, or nil.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	failed := make([]domain.BatchFailure, len(r.Failed))
	for i, f := range r.Failed {
		failed[i] = domain.BatchFailure{Index: f.Index, Start: f.Start, Size: f.Size, Err: f.Err}
	}
	return &domain.SubmissionError{Failed: failed}
}

// Interrupted reports whether some batches were never attempted.
func (r *Report) Interrupted() bool {
	return r.Skipped > 0
}
