// Package redis mirrors ledger rankings into Redis sorted sets for readers
// outside this process. The ledger stays authoritative; the projection can be
// rebuilt from it at any time.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baselume-ledger/internal/config"
	"github.com/baselume-ledger/internal/domain"
)

const keyPrefix = "baselume"

// Projection writes ledger events into Redis
type Projection struct {
	client   *redis.Client
	dailyTTL time.Duration
	logger   *slog.Logger
}

// NewProjection connects to Redis
func NewProjection(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*Projection, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Projection{
		client:   client,
		dailyTTL: cfg.DailyTTL,
		logger:   logger,
	}, nil
}

// Close closes the Redis connection
func (p *Projection) Close() error {
	return p.client.Close()
}

// Ping checks the Redis connection
func (p *Projection) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// LifetimeKey is the sorted set of lifetime totals
func LifetimeKey() string {
	return keyPrefix + ":lifetime"
}

// DailyKey is the sorted set of totals for one day
func DailyKey(day uint64) string {
	return keyPrefix + ":daily:" + strconv.FormatUint(day, 10)
}

// ChampionsKey is the hash of champion records by day
func ChampionsKey() string {
	return keyPrefix + ":champions"
}

// DayStatsKey is the hash holding the finalized stats of one day
func DayStatsKey(day uint64) string {
	return keyPrefix + ":day:" + strconv.FormatUint(day, 10)
}

// OnScoreRecorded raises the player's totals. Totals only grow, so ZADD GT
// keeps a late event from overwriting a newer total and makes replays
// harmless.
func (p *Projection) OnScoreRecorded(ctx context.Context, ev domain.ScoreRecorded) {
	member := ev.Player.String()
	dailyKey := DailyKey(ev.Day)

	pipe := p.client.Pipeline()
	pipe.ZAddGT(ctx, LifetimeKey(), redis.Z{Score: float64(ev.TotalScore), Member: member})
	pipe.ZAddGT(ctx, dailyKey, redis.Z{Score: float64(ev.DailyScore), Member: member})
	if p.dailyTTL > 0 {
		pipe.Expire(ctx, dailyKey, p.dailyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("projecting score", "player", member, "day", ev.Day, "error", err)
	}
}

// OnDailyWinnerDeclared stores the finalized totals of the day
func (p *Projection) OnDailyWinnerDeclared(ctx context.Context, ev domain.DailyWinnerDeclared) {
	err := p.client.HSet(ctx, DayStatsKey(ev.Day),
		"winner", ev.Winner.String(),
		"total_score", ev.TotalScore,
	).Err()
	if err != nil {
		p.logger.Error("projecting daily winner", "day", ev.Day, "error", err)
	}
}

// OnChampionMinted records the champion token of the day
func (p *Projection) OnChampionMinted(ctx context.Context, ev domain.DailyChampionMinted) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("encoding champion", "day", ev.Day, "error", err)
		return
	}
	if err := p.client.HSet(ctx, ChampionsKey(), strconv.FormatUint(ev.Day, 10), data).Err(); err != nil {
		p.logger.Error("projecting champion", "day", ev.Day, "token_id", ev.TokenID, "error", err)
	}
}

// Replace swaps the content of a ranking key in one transaction
func (p *Projection) Replace(ctx context.Context, key string, entries []domain.LeaderboardEntry, ttl time.Duration) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(entries) == 0 {
			return nil
		}
		members := make([]redis.Z, len(entries))
		for i, e := range entries {
			members[i] = redis.Z{Score: float64(e.Score), Member: e.Player.String()}
		}
		pipe.ZAdd(ctx, key, members...)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing %s: %w", key, err)
	}
	return nil
}

// RebuildLifetime replaces the lifetime ranking
func (p *Projection) RebuildLifetime(ctx context.Context, entries []domain.LeaderboardEntry) error {
	return p.Replace(ctx, LifetimeKey(), entries, 0)
}

// RebuildDaily replaces the ranking of one day
func (p *Projection) RebuildDaily(ctx context.Context, day uint64, entries []domain.LeaderboardEntry) error {
	return p.Replace(ctx, DailyKey(day), entries, p.dailyTTL)
}

// RebuildChampions rewrites the champion hash
func (p *Projection) RebuildChampions(ctx context.Context, records []domain.ChampionRecord) error {
	if len(records) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(records)*2)
	for _, rec := range records {
		data, err := json.Marshal(domain.DailyChampionMinted{
			Winner:  rec.Champion,
			TokenID: rec.TokenID,
			Day:     rec.Day,
			Score:   rec.Score,
		})
		if err != nil {
			return fmt.Errorf("encoding champion: %w", err)
		}
		values = append(values, strconv.FormatUint(rec.Day, 10), data)
	}
	if err := p.client.HSet(ctx, ChampionsKey(), values...).Err(); err != nil {
		return fmt.Errorf("rebuilding champions: %w", err)
	}
	return nil
}
