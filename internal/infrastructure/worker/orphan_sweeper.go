package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
)

// SweeperConfig holds configuration for the orphan sweeper
type SweeperConfig struct {
	Interval        time.Duration
	Grace           time.Duration // unreferenced invoices younger than this are kept
	ExportRetention time.Duration // 0 keeps exports forever
	InvoicePrefix   string
	ExportPrefix    string
}

// SweepStats is the outcome of one sweep
type SweepStats struct {
	Scanned        int
	Orphans        int
	Removed        int
	ExportsRemoved int
	Failed         int
}

// OrphanSweeper removes invoice blobs no request references, which are
// left behind when a best-effort delete fails, and expires old exports.
type OrphanSweeper struct {
	config   SweeperConfig
	blobs    port.BlobStore
	requests port.RequestRepository
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	lastStats SweepStats
}

// NewOrphanSweeper creates a new sweeper
func NewOrphanSweeper(config SweeperConfig, blobs port.BlobStore, requests port.RequestRepository, logger *zap.Logger) *OrphanSweeper {
	return &OrphanSweeper{
		config:   config,
		blobs:    blobs,
		requests: requests,
		logger:   logger,
		now:      time.Now,
	}
}

func (w *OrphanSweeper) Name() string {
	return "OrphanSweeper"
}

// Start begins the sweep loop
func (w *OrphanSweeper) Start(ctx context.Context) error {
	if w.config.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", w.config.Interval)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("orphan sweeper already running")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("OrphanSweeper started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("grace", w.config.Grace))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for a running sweep to finish
func (w *OrphanSweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("OrphanSweeper stopped")
	return nil
}

// LastStats returns the result of the most recent sweep
func (w *OrphanSweeper) LastStats() SweepStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastStats
}

func (w *OrphanSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := w.Sweep(ctx)
			if err != nil {
				w.logger.Error("Orphan sweep failed", zap.Error(err))
				continue
			}
			w.mu.Lock()
			w.lastStats = stats
			w.mu.Unlock()
		}
	}
}

// Sweep runs one pass. The blob listing is taken before the reference set
// so a blob stored and referenced in between is never seen as an orphan.
func (w *OrphanSweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := w.now()

	invoices, err := w.blobs.List(ctx, w.config.InvoicePrefix)
	if err != nil {
		return stats, fmt.Errorf("list invoices: %w", err)
	}
	referenced, err := w.requests.ReferencedInvoices(ctx)
	if err != nil {
		return stats, fmt.Errorf("load referenced invoices: %w", err)
	}

	for _, blob := range invoices {
		stats.Scanned++
		if referenced[blob.Key] || now.Sub(blob.ModTime) < w.config.Grace {
			continue
		}
		stats.Orphans++
		if err := w.blobs.Delete(ctx, blob.Key); err != nil {
			stats.Failed++
			w.logger.Warn("Failed to remove orphaned invoice", zap.String("key", blob.Key), zap.Error(err))
			continue
		}
		stats.Removed++
		w.logger.Info("Removed orphaned invoice", zap.String("key", blob.Key))
	}

	if w.config.ExportRetention > 0 && w.config.ExportPrefix != "" {
		exports, err := w.blobs.List(ctx, w.config.ExportPrefix)
		if err != nil {
			return stats, fmt.Errorf("list exports: %w", err)
		}
		for _, blob := range exports {
			if !strings.HasPrefix(blob.Key, w.config.ExportPrefix) || now.Sub(blob.ModTime) < w.config.ExportRetention {
				continue
			}
			if err := w.blobs.Delete(ctx, blob.Key); err != nil {
				stats.Failed++
				w.logger.Warn("Failed to remove expired export", zap.String("key", blob.Key), zap.Error(err))
				continue
			}
			stats.ExportsRemoved++
		}
	}

	if stats.Removed > 0 || stats.ExportsRemoved > 0 || stats.Failed > 0 {
		w.logger.Info("Orphan sweep finished",
			zap.Int("scanned", stats.Scanned),
			zap.Int("removed", stats.Removed),
			zap.Int("exports_removed", stats.ExportsRemoved),
			zap.Int("failed", stats.Failed))
	}
	return stats, nil
}
