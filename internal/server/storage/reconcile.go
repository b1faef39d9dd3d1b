package storage

import (
	"context"
	"log/slog"
	"time"

	"passiflora/internal/server/database"
)

// PlaceholderLister returns upload rows that never received a size.
type PlaceholderLister interface {
	ListStalePlaceholders(ctx context.Context, cutoff time.Time) ([]*database.File, error)
}

// BlobChecker reports whether a blob is on disk.
type BlobChecker interface {
	Exists(ownerID, fileID int64) (bool, error)
}

// Reconciler periodically reports placeholder rows older than staleAge,
// along with whether a partial blob was left behind. It only reads.
type Reconciler struct {
	files    PlaceholderLister
	blobs    BlobChecker
	interval time.Duration
	staleAge time.Duration
	now      func() time.Time
	done     chan struct{}
}

// NewReconciler creates a new reconciler.
func NewReconciler(files PlaceholderLister, blobs BlobChecker, interval, staleAge time.Duration) *Reconciler {
	return &Reconciler{
		files:    files,
		blobs:    blobs,
		interval: interval,
		staleAge: staleAge,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the scan loop in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("reconciler started", "interval", r.interval, "stale_after", r.staleAge)

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.Scan(ctx)

		for {
			select {
			case <-ticker.C:
				r.Scan(ctx)
			case <-ctx.Done():
				slog.Info("reconciler stopping")
				return
			}
		}
	}()
}

// Wait blocks until the reconciler has fully stopped.
func (r *Reconciler) Wait() {
	<-r.done
}

// ScanResult summarizes one reconciliation pass.
type ScanResult struct {
	Stale       int
	WithBlob    int
	WithoutBlob int
}

// Scan runs a single reconciliation pass.
func (r *Reconciler) Scan(ctx context.Context) ScanResult {
	var res ScanResult

	cutoff := r.now().Add(-r.staleAge)
	stale, err := r.files.ListStalePlaceholders(ctx, cutoff)
	if err != nil {
		slog.Error("failed to list stale uploads", "error", err)
		return res
	}
	res.Stale = len(stale)

	if len(stale) == 0 {
		return res
	}

	for _, f := range stale {
		exists, err := r.blobs.Exists(f.OwnerID, f.ID)
		if err != nil {
			slog.Error("failed to check blob",
				"file_id", f.ID,
				"user_id", f.OwnerID,
				"error", err,
			)
			continue
		}
		if exists {
			res.WithBlob++
		} else {
			res.WithoutBlob++
		}
		slog.Warn("incomplete upload",
			"file_id", f.ID,
			"user_id", f.OwnerID,
			"name", f.Name,
			"created_at", f.CreatedAt,
			"blob_present", exists,
		)
	}

	slog.Info("reconcile cycle complete",
		"stale", res.Stale,
		"with_blob", res.WithBlob,
		"without_blob", res.WithoutBlob,
	)
	return res
}
