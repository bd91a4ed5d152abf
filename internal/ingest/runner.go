// Package ingest runs one complete sync: it reads the stored watermark, asks the
// coordinator for newer notices, persists them and announces what was added.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ajou-notice-sync/internal/metrics"
	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
	"github.com/JakeFAU/ajou-notice-sync/internal/syncer"
)

// EventSynced is published once per newly stored notice.
const EventSynced = "notice.synced"

// Store persists notice records.
type Store interface {
	MaxID(ctx context.Context) (int64, error)
	Insert(ctx context.Context, rec notice.Record) (bool, error)
	List(ctx context.Context, q notice.Query) ([]notice.Record, error)
	Close()
}

// Coordinator produces records newer than a watermark.
type Coordinator interface {
	Sync(ctx context.Context, watermark int64) (syncer.Result, error)
}

// Publisher announces sync events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator issues run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// SyncedEvent is the payload of EventSynced.
type SyncedEvent struct {
	RunID      string    `json:"run_id"`
	ID         int64     `json:"id"`
	Category   string    `json:"category"`
	Department string    `json:"department"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Summarized bool      `json:"summarized"`
	SyncedAt   time.Time `json:"synced_at"`
}

// Report describes one run.
type Report struct {
	RunID     string
	Watermark int64
	// Records holds every record the coordinator produced, inserted or not.
	Records  []notice.Record
	Inserted int
	Failures []syncer.EntryFailure
	// ImageFailures lists images left out of summaries; their records are in Records.
	ImageFailures []syncer.EntryFailure
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Runner serializes sync runs.
type Runner struct {
	mu          sync.Mutex
	store       Store
	coordinator Coordinator
	publisher   Publisher
	clock       Clock
	ids         IDGenerator
	logger      *zap.Logger
}

// NewRunner wires a Runner. publisher and logger may be nil.
func NewRunner(
	store Store,
	coordinator Coordinator,
	publisher Publisher,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) (*Runner, error) {
	switch {
	case store == nil:
		return nil, fmt.Errorf("store is required")
	case coordinator == nil:
		return nil, fmt.Errorf("coordinator is required")
	case clock == nil:
		return nil, fmt.Errorf("clock is required")
	case ids == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:       store,
		coordinator: coordinator,
		publisher:   publisher,
		clock:       clock,
		ids:         ids,
		logger:      logger,
	}, nil
}

// Run performs one sync. A run started while another is active waits for it.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, err := r.run(ctx)
	if err != nil {
		metrics.ObserveSyncRun("error")
		r.logger.Error("sync run failed", zap.String("run_id", report.RunID), zap.Error(err))
		return report, err
	}
	metrics.ObserveSyncRun("success")
	metrics.AddIngested(report.Inserted)
	r.logger.Info("sync run finished",
		zap.String("run_id", report.RunID),
		zap.Int64("watermark", report.Watermark),
		zap.Int("records", len(report.Records)),
		zap.Int("inserted", report.Inserted),
		zap.Int("failures", len(report.Failures)),
		zap.Int("images_skipped", len(report.ImageFailures)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (r *Runner) run(ctx context.Context) (Report, error) {
	runID, err := r.ids.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("assign run id: %w", err)
	}
	report := Report{RunID: runID, StartedAt: r.clock.Now()}
	logger := r.logger.With(zap.String("run_id", runID))

	report.Watermark, err = r.store.MaxID(ctx)
	if err != nil {
		return report, fmt.Errorf("read watermark: %w", err)
	}
	logger.Debug("sync run started", zap.Int64("watermark", report.Watermark))

	res, err := r.coordinator.Sync(ctx, report.Watermark)
	if err != nil {
		return report, err
	}
	report.Records = res.Records
	report.Failures = res.Failures
	report.ImageFailures = res.ImageFailures

	for _, rec := range res.Records {
		inserted, err := r.store.Insert(ctx, rec)
		if err != nil {
			return report, fmt.Errorf("store notice %d: %w", rec.ID, err)
		}
		if !inserted {
			logger.Debug("notice already stored", zap.Int64("article_no", rec.ID))
			continue
		}
		report.Inserted++
		r.announce(ctx, logger, runID, rec)
	}
	report.FinishedAt = r.clock.Now()
	return report, nil
}

func (r *Runner) announce(ctx context.Context, logger *zap.Logger, runID string, rec notice.Record) {
	if r.publisher == nil {
		return
	}
	event := SyncedEvent{
		RunID:      runID,
		ID:         rec.ID,
		Category:   rec.Category,
		Department: rec.Department,
		Title:      rec.Title,
		URL:        rec.URL,
		Summarized: rec.Summary != "",
		SyncedAt:   r.clock.Now(),
	}
	if _, err := r.publisher.Publish(ctx, EventSynced, event); err != nil {
		logger.Warn("publish sync event failed", zap.Int64("article_no", rec.ID), zap.Error(err))
	}
}
