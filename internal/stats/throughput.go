// Package stats tracks transfer throughput of a send run.
package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// DefaultWindow is the span the current rate is computed over.
const DefaultWindow = time.Minute

// Snapshot is a point-in-time view of a tracker.
type Snapshot struct {
	Batches   uint64
	Transfers uint64
	Elapsed   time.Duration
	// CurrentTPS is transfers per second over the sliding window.
	CurrentTPS float64
	AverageTPS float64
	MaxTPS     float64
	LastUpdate time.Time
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%d transfers in %d batches over %s (avg %.2f tx/s, max %.2f tx/s)",
		s.Transfers, s.Batches, s.Elapsed.Round(time.Second), s.AverageTPS, s.MaxTPS)
}

type batchEvent struct {
	at        time.Time
	transfers int
}

// Tracker counts submitted batches and the transfers they carried.
type Tracker struct {
	mu  sync.RWMutex
	log log.Logger
	now func() time.Time

	window     []batchEvent
	windowSize time.Duration

	batches    uint64
	transfers  uint64
	currentTPS float64
	maxTPS     float64
	startTime  time.Time
	lastUpdate time.Time
}

// NewTracker starts a tracker. A zero window uses DefaultWindow.
func NewTracker(l log.Logger, window time.Duration) *Tracker {
	return newTracker(l, window, time.Now)
}

func newTracker(l log.Logger, window time.Duration, now func() time.Time) *Tracker {
	if l == nil {
		l = log.Root()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	start := now()
	return &Tracker{
		log:        l,
		now:        now,
		window:     make([]batchEvent, 0, 64),
		windowSize: window,
		startTime:  start,
		lastUpdate: start,
	}
}

// RecordBatch records one submitted batch of n transfers.
func (t *Tracker) RecordBatch(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.window = append(t.window, batchEvent{at: now, transfers: n})
	t.batches++
	t.transfers += uint64(n)
	t.lastUpdate = now

	cutoff := now.Add(-t.windowSize)
	drop := 0
	for drop < len(t.window) && !t.window[drop].at.After(cutoff) {
		drop++
	}
	t.window = t.window[drop:]

	t.calculateTPS(now)
}

// calculateTPS must be called with the lock held.
func (t *Tracker) calculateTPS(now time.Time) {
	if len(t.window) == 0 {
		t.currentTPS = 0
		return
	}
	count := 0
	for _, e := range t.window {
		count += e.transfers
	}
	span := now.Sub(t.window[0].at)
	if since := now.Sub(t.startTime); len(t.window) == 1 || span <= 0 {
		span = since
	}
	if span <= 0 {
		return
	}
	t.currentTPS = float64(count) / span.Seconds()
	// a single batch tells nothing about the peak
	if len(t.window) >= 2 && t.currentTPS > t.maxTPS {
		t.maxTPS = t.currentTPS
	}
}

// Snapshot returns the current statistics.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	elapsed := t.now().Sub(t.startTime)
	avg := 0.0
	if elapsed > 0 {
		avg = float64(t.transfers) / elapsed.Seconds()
	}
	return Snapshot{
		Batches:    t.batches,
		Transfers:  t.transfers,
		Elapsed:    elapsed,
		CurrentTPS: t.currentTPS,
		AverageTPS: avg,
		MaxTPS:     t.maxTPS,
		LastUpdate: t.lastUpdate,
	}
}

// Log writes the statistics at info level.
func (t *Tracker) Log(msg string) {
	s := t.Snapshot()
	t.log.Info(msg,
		"batches", s.Batches,
		"transfers", s.Transfers,
		"currentTPS", fmt.Sprintf("%.2f", s.CurrentTPS),
		"avgTPS", fmt.Sprintf("%.2f", s.AverageTPS),
		"maxTPS", fmt.Sprintf("%.2f", s.MaxTPS),
		"elapsed", s.Elapsed.Round(time.Second).String(),
	)
}
