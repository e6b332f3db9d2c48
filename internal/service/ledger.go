package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/baselume-ledger/internal/config"
	"github.com/baselume-ledger/internal/domain"
	"github.com/baselume-ledger/internal/ledger"
	"github.com/baselume-ledger/internal/metrics"
	"github.com/baselume-ledger/internal/scoring"
)

// Submission sources, used as a metrics label
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
)

// Batch item statuses
const (
	StatusRecorded = "recorded"
	StatusRejected = "rejected"
)

// LedgerService adapts transport input to ledger operations
type LedgerService struct {
	ledger *ledger.Ledger
	config *config.LeaderboardConfig
	logger *slog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(l *ledger.Ledger, cfg *config.LeaderboardConfig, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		ledger: l,
		config: cfg,
		logger: logger,
	}
}

// Ledger returns the underlying ledger
func (s *LedgerService) Ledger() *ledger.Ledger {
	return s.ledger
}

// ResolveScore returns the numeric score of a submission. Raw judge output
// is only parsed when no explicit score was sent.
func ResolveScore(sub domain.ScoreSubmission) int64 {
	if sub.Score == 0 && sub.AIResponse != "" {
		return scoring.ParseResult(sub.AIResponse).Score
	}
	return sub.Score
}

// SubmitScore records one submission on behalf of caller
func (s *LedgerService) SubmitScore(ctx context.Context, caller domain.Address, sub domain.ScoreSubmission, source string) (domain.ScoreEntry, error) {
	entry, err := s.submit(ctx, caller, sub)
	if err != nil {
		metrics.SubmissionsRejected.WithLabelValues(metrics.Reason(err), source).Inc()
		return domain.ScoreEntry{}, err
	}
	return entry, nil
}

func (s *LedgerService) submit(ctx context.Context, caller domain.Address, sub domain.ScoreSubmission) (domain.ScoreEntry, error) {
	player, err := domain.ParseAddress(sub.Player)
	if err != nil {
		return domain.ScoreEntry{}, err
	}
	return s.ledger.RecordScore(ctx, caller, player, ResolveScore(sub), sub.GameID)
}

// SubmitScoreBatch records each submission independently and reports a
// result per item
func (s *LedgerService) SubmitScoreBatch(ctx context.Context, caller domain.Address, batch domain.BatchScoreSubmission, source string) []domain.SubmissionResult {
	results := make([]domain.SubmissionResult, len(batch.Scores))
	for i, sub := range batch.Scores {
		results[i] = domain.SubmissionResult{
			Player: sub.Player,
			GameID: sub.GameID,
			Status: StatusRecorded,
		}
		if _, err := s.SubmitScore(ctx, caller, sub, source); err != nil {
			s.logger.Warn("failed to submit score in batch",
				"player", sub.Player,
				"game_id", sub.GameID,
				"error", err,
			)
			results[i].Status = StatusRejected
			results[i].Error = err.Error()
		}
	}
	return results
}

// ClampLimit applies the configured maximum. Non-positive limits pass
// through and yield empty rankings.
func (s *LedgerService) ClampLimit(limit int) int {
	if limit > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return limit
}

// DefaultLimit is used when a request does not name a limit
func (s *LedgerService) DefaultLimit() int {
	return s.config.DefaultLimit
}

// TopPlayers returns the lifetime ranking
func (s *LedgerService) TopPlayers(limit int) []domain.LeaderboardEntry {
	return s.ledger.TopPlayers(s.ClampLimit(limit))
}

// DailyTopPlayers returns the ranking of one day
func (s *LedgerService) DailyTopPlayers(day uint64, limit int) []domain.LeaderboardEntry {
	return s.ledger.DailyTopPlayers(day, s.ClampLimit(limit))
}

// PlayerSummary gathers everything the lobby shows about one player
func (s *LedgerService) PlayerSummary(player domain.Address) domain.PlayerSummary {
	day := s.ledger.CurrentDay()
	tokens := s.ledger.OwnedTokens(player)
	return domain.PlayerSummary{
		Address:      player,
		TotalScore:   s.ledger.TotalScore(player),
		DailyScore:   s.ledger.DailyScore(player, day),
		Day:          day,
		Rank:         s.ledger.PlayerRank(player),
		IsChampion:   len(tokens) > 0,
		OwnedTokens:  tokens,
		TokenBalance: len(tokens),
	}
}

// PlayerStats summarizes a player's accepted scores
func (s *LedgerService) PlayerStats(player domain.Address) scoring.Stats {
	entries := s.ledger.PlayerEntries(player)
	scores := make([]int64, len(entries))
	for i, e := range entries {
		scores[i] = int64(e.Score)
	}
	return scoring.ScoreStats(scores)
}

// MintDailyChampion mints the champion of a finished day
func (s *LedgerService) MintDailyChampion(ctx context.Context, day uint64) (domain.ChampionRecord, error) {
	rec, err := s.ledger.MintDailyChampion(ctx, day)
	metrics.MintAttempts.WithLabelValues(metrics.Reason(err)).Inc()
	return rec, err
}

// SetChampionMinter links the minter on behalf of caller
func (s *LedgerService) SetChampionMinter(ctx context.Context, caller domain.Address, minter string) error {
	addr, err := domain.ParseAddress(minter)
	if err != nil {
		return err
	}
	return s.ledger.SetChampionMinter(ctx, caller, addr)
}

// ChampionsInRange lists minted champions between two days
func (s *LedgerService) ChampionsInRange(from, to uint64) ([]domain.ChampionRecord, error) {
	if to < from {
		return nil, fmt.Errorf("%w: range end %d before start %d", domain.ErrInvalidRequest, to, from)
	}
	return s.ledger.ChampionsInRange(from, to), nil
}
