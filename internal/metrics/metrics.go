// Package metrics exposes Prometheus collectors for the ledger service.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/baselume-ledger/internal/domain"
)

const namespace = "baselume"

// Ledger metrics
var ScoresRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "scores_recorded_total",
	Help:      "Accepted score submissions.",
})

var ScoreValues = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "score_value",
	Help:      "Distribution of accepted scores.",
	Buckets:   prometheus.LinearBuckets(1, 1, 10),
})

var SubmissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "submissions_rejected_total",
	Help:      "Rejected score submissions by reason.",
}, []string{"reason", "source"})

var ChampionsMinted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "champion",
	Name:      "minted_total",
	Help:      "Champion tokens minted.",
})

var MintAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "champion",
	Name:      "mint_attempts_total",
	Help:      "Mint attempts by outcome.",
}, []string{"outcome"})

var CurrentDay = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "current_day",
	Help:      "Day index of the most recent accepted score.",
})

// Ingestion metrics
var KafkaMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "kafka",
	Name:      "messages_total",
	Help:      "Consumed Kafka messages by outcome.",
}, []string{"outcome"})

// Worker metrics
var SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "sync",
	Name:      "duration_seconds",
	Help:      "Duration of projection rebuilds.",
	Buckets:   prometheus.DefBuckets,
})

var SyncErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "sync",
	Name:      "errors_total",
	Help:      "Failed projection rebuilds.",
})

var WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "websocket",
	Name:      "clients",
	Help:      "Connected websocket clients.",
})

// Reason maps a ledger error to a low-cardinality label
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidScore):
		return "invalid_score"
	case errors.Is(err, domain.ErrInvalidGameID):
		return "invalid_game_id"
	case errors.Is(err, domain.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return "duplicate"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrDayNotElapsed):
		return "day_not_elapsed"
	case errors.Is(err, domain.ErrAlreadyMinted):
		return "already_minted"
	case errors.Is(err, domain.ErrNoWinnerForDay):
		return "no_winner"
	case errors.Is(err, domain.ErrMinterNotSet):
		return "minter_not_set"
	case errors.Is(err, domain.ErrMinterAlreadySet):
		return "minter_already_set"
	case errors.Is(err, domain.ErrTokenNotFound):
		return "token_not_found"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal"
	}
}

// Observer counts committed ledger events
type Observer struct{}

// OnScoreRecorded implements ledger.Observer
func (Observer) OnScoreRecorded(_ context.Context, ev domain.ScoreRecorded) {
	ScoresRecorded.Inc()
	ScoreValues.Observe(float64(ev.Score))
	CurrentDay.Set(float64(ev.Day))
}

// OnDailyWinnerDeclared implements ledger.Observer
func (Observer) OnDailyWinnerDeclared(context.Context, domain.DailyWinnerDeclared) {}

// OnChampionMinted implements ledger.Observer
func (Observer) OnChampionMinted(context.Context, domain.DailyChampionMinted) {
	ChampionsMinted.Inc()
}
