package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/baselume-ledger/internal/config"
	"github.com/baselume-ledger/internal/domain"
	"github.com/baselume-ledger/internal/metrics"
)

// ChampionMinter is the part of the ledger the finalizer drives
type ChampionMinter interface {
	CurrentDay() uint64
	UnmintedDays(from, to uint64) []uint64
	MintDailyChampion(ctx context.Context, day uint64) (domain.ChampionRecord, error)
}

// Finalizer mints the champion of every finished day that has not been
// minted yet. Minting is permissionless, so the service does it on a
// schedule instead of waiting for an outside caller.
type Finalizer struct {
	ledger    ChampionMinter
	config    *config.FinalizerConfig
	logger    *slog.Logger
	scheduler gocron.Scheduler
}

// NewFinalizer creates a finalizer
func NewFinalizer(ledger ChampionMinter, cfg *config.FinalizerConfig, logger *slog.Logger) *Finalizer {
	return &Finalizer{
		ledger: ledger,
		config: cfg,
		logger: logger,
	}
}

// Start schedules a daily run shortly after UTC midnight and runs once
// immediately to catch up on days missed while the service was down.
func (f *Finalizer) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	offset := f.config.Offset
	at := gocron.NewAtTime(
		uint(offset/time.Hour)%24,
		uint(offset/time.Minute)%60,
		uint(offset/time.Second)%60,
	)
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(at)),
		gocron.NewTask(func() {
			f.RunOnce(ctx)
		}),
		gocron.WithName("daily-champion-finalizer"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("scheduling finalizer: %w", err)
	}

	sched.Start()
	f.scheduler = sched
	f.logger.Info("finalizer started",
		"offset", offset,
		"lookback_days", f.config.LookbackDays,
	)
	return nil
}

// Stop shuts the scheduler down, waiting for a running job
func (f *Finalizer) Stop() error {
	if f.scheduler == nil {
		return nil
	}
	if err := f.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stopping finalizer: %w", err)
	}
	f.logger.Info("finalizer stopped")
	return nil
}

// RunOnce mints every unminted day inside the lookback window and returns
// the records it created.
func (f *Finalizer) RunOnce(ctx context.Context) []domain.ChampionRecord {
	today := f.ledger.CurrentDay()
	if today == 0 {
		return nil
	}
	to := today - 1
	from := uint64(0)
	if lookback := uint64(f.config.LookbackDays); lookback > 0 && today > lookback {
		from = today - lookback
	}

	var minted []domain.ChampionRecord
	for _, day := range f.ledger.UnmintedDays(from, to) {
		if ctx.Err() != nil {
			break
		}
		rec, err := f.ledger.MintDailyChampion(ctx, day)
		metrics.MintAttempts.WithLabelValues(metrics.Reason(err)).Inc()
		switch {
		case err == nil:
			minted = append(minted, rec)
		case errors.Is(err, domain.ErrAlreadyMinted), errors.Is(err, domain.ErrNoWinnerForDay):
			f.logger.Debug("day already settled", "day", day, "error", err)
		case errors.Is(err, domain.ErrMinterNotSet):
			f.logger.Warn("champion minter not linked, skipping finalization", "day", day)
			return minted
		default:
			f.logger.Error("failed to mint daily champion", "day", day, "error", err)
		}
	}

	if len(minted) > 0 {
		f.logger.Info("finalized days", "count", len(minted), "through_day", to)
	}
	return minted
}
