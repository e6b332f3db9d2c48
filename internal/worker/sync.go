package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/baselume-ledger/internal/config"
	"github.com/baselume-ledger/internal/domain"
	"github.com/baselume-ledger/internal/metrics"
)

// RankingSource is the authoritative side of a sync
type RankingSource interface {
	CurrentDay() uint64
	TopPlayers(limit int) []domain.LeaderboardEntry
	DailyTopPlayers(day uint64, limit int) []domain.LeaderboardEntry
	ChampionsInRange(startDay, endDay uint64) []domain.ChampionRecord
}

// ProjectionStore receives rebuilt rankings
type ProjectionStore interface {
	RebuildLifetime(ctx context.Context, entries []domain.LeaderboardEntry) error
	RebuildDaily(ctx context.Context, day uint64, entries []domain.LeaderboardEntry) error
	RebuildChampions(ctx context.Context, records []domain.ChampionRecord) error
}

// SyncWorker periodically rebuilds the Redis projection from the ledger so
// that missed or failed event writes heal on their own.
type SyncWorker struct {
	source  RankingSource
	store   ProjectionStore
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	source RankingSource,
	store ProjectionStore,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		source: source,
		store:  store,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce rebuilds the lifetime ranking, the rankings of today and
// yesterday, and the champion hash. It returns the number of failed steps.
func (w *SyncWorker) RunOnce(ctx context.Context) int {
	start := time.Now()
	today := w.source.CurrentDay()
	errorCount := 0

	if err := w.store.RebuildLifetime(ctx, w.source.TopPlayers(w.config.TopN)); err != nil {
		w.logger.Error("failed to rebuild lifetime ranking", "error", err)
		errorCount++
	}

	days := []uint64{today}
	if today > 0 {
		days = append(days, today-1)
	}
	for _, day := range days {
		entries := w.source.DailyTopPlayers(day, w.config.TopN)
		if err := w.store.RebuildDaily(ctx, day, entries); err != nil {
			w.logger.Error("failed to rebuild daily ranking", "day", day, "error", err)
			errorCount++
		}
	}

	if err := w.store.RebuildChampions(ctx, w.source.ChampionsInRange(0, today)); err != nil {
		w.logger.Error("failed to rebuild champions", "error", err)
		errorCount++
	}

	duration := time.Since(start)
	metrics.SyncDuration.Observe(duration.Seconds())
	if errorCount > 0 {
		metrics.SyncErrors.Add(float64(errorCount))
	}
	w.logger.Info("sync cycle completed",
		"duration", duration,
		"day", today,
		"errors", errorCount,
	)
	return errorCount
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
