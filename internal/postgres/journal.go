package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baselume-ledger/internal/config"
	"github.com/baselume-ledger/internal/domain"
	"github.com/baselume-ledger/internal/ledger"
)

const (
	settingMinter = "champion_minter"

	uniqueViolation = "23505"
)

// Journal is the durable, append-only record of the ledger in PostgreSQL
type Journal struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ ledger.Journal = (*Journal)(nil)

// NewJournal connects to PostgreSQL
func NewJournal(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Journal, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Journal{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (j *Journal) Close() {
	j.pool.Close()
}

// Ping checks the database connection
func (j *Journal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}

// RunMigrations creates the journal tables
func (j *Journal) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS score_entries (
			seq BIGINT PRIMARY KEY,
			player VARCHAR(42) NOT NULL,
			score SMALLINT NOT NULL CHECK (score BETWEEN 1 AND 10),
			day BIGINT NOT NULL,
			game_id VARCHAR(100) NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			UNIQUE (player, game_id)
		)`,
		`CREATE TABLE IF NOT EXISTS champion_records (
			token_id BIGINT PRIMARY KEY,
			day BIGINT NOT NULL UNIQUE,
			champion VARCHAR(42) NOT NULL,
			score BIGINT NOT NULL,
			minted_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_settings (
			key VARCHAR(64) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_score_entries_day ON score_entries(day)`,
		`CREATE INDEX IF NOT EXISTS idx_champion_records_champion ON champion_records(champion)`,
	}

	for _, migration := range migrations {
		if _, err := j.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	j.logger.Info("database migrations completed")
	return nil
}

// AppendScore inserts one ledger entry
func (j *Journal) AppendScore(ctx context.Context, entry domain.ScoreEntry) error {
	query := `
		INSERT INTO score_entries (seq, player, score, day, game_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := j.pool.Exec(ctx, query,
		int64(entry.Seq),
		entry.Player.String(),
		int16(entry.Score),
		int64(entry.Day),
		entry.GameID,
		entry.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("appending score: %w", domain.ErrDuplicateSubmission)
		}
		return fmt.Errorf("appending score: %w", err)
	}
	return nil
}

// AppendChampion inserts one champion record
func (j *Journal) AppendChampion(ctx context.Context, record domain.ChampionRecord) error {
	query := `
		INSERT INTO champion_records (token_id, day, champion, score, minted_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := j.pool.Exec(ctx, query,
		int64(record.TokenID),
		int64(record.Day),
		record.Champion.String(),
		int64(record.Score),
		record.MintedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("appending champion: %w", domain.ErrAlreadyMinted)
		}
		return fmt.Errorf("appending champion: %w", err)
	}
	return nil
}

// SaveMinter stores the champion minter link
func (j *Journal) SaveMinter(ctx context.Context, minter domain.Address) error {
	query := `
		INSERT INTO ledger_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET value = $2, updated_at = $3
	`
	if _, err := j.pool.Exec(ctx, query, settingMinter, minter.String(), time.Now()); err != nil {
		return fmt.Errorf("saving minter: %w", err)
	}
	return nil
}

// Load reads the whole journal in replay order
func (j *Journal) Load(ctx context.Context) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{}

	entries, err := j.loadEntries(ctx)
	if err != nil {
		return nil, err
	}
	snap.Entries = entries

	champions, err := j.loadChampions(ctx)
	if err != nil {
		return nil, err
	}
	snap.Champions = champions

	var minter string
	err = j.pool.QueryRow(ctx, `SELECT value FROM ledger_settings WHERE key = $1`, settingMinter).Scan(&minter)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("loading minter: %w", err)
	default:
		addr, err := domain.ParseAddress(minter)
		if err != nil {
			return nil, fmt.Errorf("loading minter: %w", err)
		}
		snap.Minter = addr
	}

	j.logger.Info("journal loaded",
		"entries", len(snap.Entries),
		"champions", len(snap.Champions),
	)
	return snap, nil
}

func (j *Journal) loadEntries(ctx context.Context) ([]domain.ScoreEntry, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT seq, player, score, day, game_id, recorded_at
		FROM score_entries
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.ScoreEntry
	for rows.Next() {
		var (
			seq, day int64
			score    int16
			player   string
			entry    domain.ScoreEntry
		)
		if err := rows.Scan(&seq, &player, &score, &day, &entry.GameID, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		if entry.Player, err = domain.ParseAddress(player); err != nil {
			return nil, fmt.Errorf("entry %d: %w", seq, err)
		}
		entry.Seq = uint64(seq)
		entry.Score = uint64(score)
		entry.Day = uint64(day)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	return entries, nil
}

func (j *Journal) loadChampions(ctx context.Context) ([]domain.ChampionRecord, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT token_id, day, champion, score, minted_at
		FROM champion_records
		ORDER BY token_id
	`)
	if err != nil {
		return nil, fmt.Errorf("loading champions: %w", err)
	}
	defer rows.Close()

	var records []domain.ChampionRecord
	for rows.Next() {
		var (
			tokenID, day, score int64
			champion            string
			rec                 domain.ChampionRecord
		)
		if err := rows.Scan(&tokenID, &day, &champion, &score, &rec.MintedAt); err != nil {
			return nil, fmt.Errorf("scanning champion: %w", err)
		}
		rec.TokenID = uint64(tokenID)
		rec.Day = uint64(day)
		if rec.Champion, err = domain.ParseAddress(champion); err != nil {
			return nil, fmt.Errorf("champion token %d: %w", tokenID, err)
		}
		rec.Score = uint64(score)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading champions: %w", err)
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
