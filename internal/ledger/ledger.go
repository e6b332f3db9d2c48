// Package ledger is the authoritative score ledger. It records submissions,
// keeps lifetime and per-day rankings, and awards one champion token per
// finished day.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/btree"

	"github.com/baselume-ledger/internal/dayclock"
	"github.com/baselume-ledger/internal/domain"
)

const btreeDegree = 32

// Options configures a Ledger
type Options struct {
	// Owner may record scores and link the champion minter.
	Owner domain.Address
	// Submitters may record scores.
	Submitters []domain.Address
	// BaseURI prefixes token metadata URIs.
	BaseURI string
	Journal Journal
	Clock   dayclock.Clock
	Logger  *slog.Logger
}

// Ledger holds all scoring state behind a single lock. Rankings span every
// player, so per-player locking would not give reads a consistent view.
type Ledger struct {
	mu      sync.RWMutex
	days    *dayclock.Partitioner
	journal Journal
	logger  *slog.Logger

	owner      domain.Address
	submitters map[domain.Address]struct{}
	minter     domain.Address
	baseURI    string

	nextSeq  uint64
	entries  []domain.ScoreEntry
	players  map[domain.Address]*playerState
	lifetime *btree.BTreeG[rankKey]
	daily    map[uint64]*dayState

	nextToken uint64
	champions map[uint64]domain.ChampionRecord
	tokens    []domain.ChampionRecord
	owned     map[domain.Address][]uint64

	observers []Observer
}

type playerState struct {
	lifetime  uint64
	firstSeen time.Time
	firstSeq  uint64
	games     map[string]struct{}
}

// New creates an empty ledger
func New(opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	journal := opts.Journal
	if journal == nil {
		journal = NewMemoryJournal()
	}

	submitters := make(map[domain.Address]struct{}, len(opts.Submitters))
	for _, s := range opts.Submitters {
		if !s.IsZero() {
			submitters[s] = struct{}{}
		}
	}

	return &Ledger{
		days:       dayclock.New(opts.Clock),
		journal:    journal,
		logger:     logger,
		owner:      opts.Owner,
		submitters: submitters,
		baseURI:    opts.BaseURI,
		nextSeq:    1,
		players:    make(map[domain.Address]*playerState),
		lifetime:   btree.NewG(btreeDegree, rankLess),
		daily:      make(map[uint64]*dayState),
		nextToken:  1,
		champions:  make(map[uint64]domain.ChampionRecord),
		owned:      make(map[domain.Address][]uint64),
	}
}

// Subscribe registers an observer for committed events
func (l *Ledger) Subscribe(o Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

// CurrentDay returns the day index for now
func (l *Ledger) CurrentDay() uint64 {
	return l.days.CurrentDay()
}

func (l *Ledger) canSubmit(caller domain.Address) bool {
	if caller.IsZero() {
		return false
	}
	if caller == l.owner {
		return true
	}
	_, ok := l.submitters[caller]
	return ok
}

// ValidateScore checks the accepted score range
func ValidateScore(score int64) error {
	if score < domain.MinScore || score > domain.MaxScore {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidScore, score)
	}
	return nil
}

// ValidateGameID checks the game id length in characters
func ValidateGameID(gameID string) error {
	n := utf8.RuneCountInString(gameID)
	if n == 0 || n > domain.MaxGameIDLength {
		return fmt.Errorf("%w: length %d", domain.ErrInvalidGameID, n)
	}
	return nil
}

// RecordScore appends a score for player on the current day. Nothing changes
// unless every check passes and the journal accepts the entry.
func (l *Ledger) RecordScore(ctx context.Context, caller, player domain.Address, score int64, gameID string) (domain.ScoreEntry, error) {
	l.mu.Lock()

	if !l.canSubmit(caller) {
		l.mu.Unlock()
		return domain.ScoreEntry{}, fmt.Errorf("recording score as %s: %w", caller, domain.ErrUnauthorized)
	}
	if err := ValidateScore(score); err != nil {
		l.mu.Unlock()
		return domain.ScoreEntry{}, err
	}
	if err := ValidateGameID(gameID); err != nil {
		l.mu.Unlock()
		return domain.ScoreEntry{}, err
	}
	if player.IsZero() {
		l.mu.Unlock()
		return domain.ScoreEntry{}, domain.ErrInvalidAddress
	}
	if p, ok := l.players[player]; ok {
		if _, seen := p.games[gameID]; seen {
			l.mu.Unlock()
			return domain.ScoreEntry{}, fmt.Errorf("game %q: %w", gameID, domain.ErrDuplicateSubmission)
		}
	}

	now := l.days.Now()
	entry := domain.ScoreEntry{
		Seq:       l.nextSeq,
		Player:    player,
		Score:     uint64(score),
		Day:       dayclock.DayOf(now),
		GameID:    gameID,
		Timestamp: now,
	}

	if err := l.journal.AppendScore(ctx, entry); err != nil {
		l.mu.Unlock()
		return domain.ScoreEntry{}, fmt.Errorf("journaling score: %w", err)
	}

	l.applyEntry(entry)
	ev := domain.ScoreRecorded{
		Seq:        entry.Seq,
		Player:     entry.Player,
		Score:      entry.Score,
		Timestamp:  entry.Timestamp,
		GameID:     entry.GameID,
		Day:        entry.Day,
		TotalScore: l.players[player].lifetime,
		DailyScore: l.daily[entry.Day].scores[player].score,
	}
	observers := l.observers
	l.mu.Unlock()

	l.logger.Debug("score recorded",
		"player", entry.Player,
		"score", entry.Score,
		"day", entry.Day,
		"game_id", entry.GameID,
	)
	for _, o := range observers {
		o.OnScoreRecorded(ctx, ev)
	}
	return entry, nil
}

// applyEntry updates aggregates and indexes. Callers hold the write lock.
func (l *Ledger) applyEntry(entry domain.ScoreEntry) {
	p, ok := l.players[entry.Player]
	if !ok {
		p = &playerState{
			firstSeen: entry.Timestamp,
			firstSeq:  entry.Seq,
			games:     make(map[string]struct{}),
		}
		l.players[entry.Player] = p
	} else {
		l.lifetime.Delete(p.key(entry.Player))
	}
	p.lifetime += entry.Score
	p.games[entry.GameID] = struct{}{}
	l.lifetime.ReplaceOrInsert(p.key(entry.Player))

	ds, ok := l.daily[entry.Day]
	if !ok {
		ds = newDayState()
		l.daily[entry.Day] = ds
	}
	ds.add(entry)

	l.entries = append(l.entries, entry)
	if entry.Seq >= l.nextSeq {
		l.nextSeq = entry.Seq + 1
	}
}

func (p *playerState) key(player domain.Address) rankKey {
	return rankKey{
		score:     p.lifetime,
		firstSeen: p.firstSeen.UnixNano(),
		seq:       p.firstSeq,
		player:    player,
	}
}

// TotalScore returns a player's lifetime score, 0 when unknown
func (l *Ledger) TotalScore(player domain.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.players[player]; ok {
		return p.lifetime
	}
	return 0
}

// DailyScore returns a player's score on day, 0 when unknown
func (l *Ledger) DailyScore(player domain.Address, day uint64) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ds, ok := l.daily[day]
	if !ok {
		return 0
	}
	if s, ok := ds.scores[player]; ok {
		return s.score
	}
	return 0
}

// DailyScoreToday returns a player's score for the current day
func (l *Ledger) DailyScoreToday(player domain.Address) uint64 {
	return l.DailyScore(player, l.CurrentDay())
}

// TotalPlayers counts distinct players with at least one entry
func (l *Ledger) TotalPlayers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.players)
}

// TotalEntries counts accepted submissions
func (l *Ledger) TotalEntries() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// PlayerEntries returns a player's entries in ledger order
func (l *Ledger) PlayerEntries(player domain.Address) []domain.ScoreEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.ScoreEntry
	for _, e := range l.entries {
		if e.Player == player {
			out = append(out, e)
		}
	}
	return out
}

// SetChampionMinter links the minter that is allowed to award champions.
// Only the owner may call it; repeating the call with the same address is a
// no-op.
func (l *Ledger) SetChampionMinter(ctx context.Context, caller, minter domain.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller.IsZero() || caller != l.owner {
		return fmt.Errorf("linking minter as %s: %w", caller, domain.ErrUnauthorized)
	}
	if minter.IsZero() {
		return domain.ErrInvalidAddress
	}
	if !l.minter.IsZero() {
		if l.minter == minter {
			return nil
		}
		return fmt.Errorf("linked to %s: %w", l.minter, domain.ErrMinterAlreadySet)
	}
	if err := l.journal.SaveMinter(ctx, minter); err != nil {
		return fmt.Errorf("journaling minter: %w", err)
	}
	l.minter = minter
	l.logger.Info("champion minter linked", "minter", minter)
	return nil
}

// ChampionMinter returns the linked minter, or the zero address
func (l *Ledger) ChampionMinter() domain.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.minter.IsZero() {
		return domain.ZeroAddress
	}
	return l.minter
}

// Restore rebuilds state from a journal snapshot without writing to the
// journal. It must run before the ledger serves traffic.
func (l *Ledger) Restore(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > 0 || len(l.tokens) > 0 {
		return fmt.Errorf("restoring ledger: state is not empty")
	}

	var lastSeq uint64
	for _, e := range snap.Entries {
		if e.Seq <= lastSeq {
			return fmt.Errorf("restoring ledger: entry seq %d out of order", e.Seq)
		}
		lastSeq = e.Seq
		if p, ok := l.players[e.Player]; ok {
			if _, dup := p.games[e.GameID]; dup {
				return fmt.Errorf("restoring ledger: game %q for %s: %w", e.GameID, e.Player, domain.ErrDuplicateSubmission)
			}
		}
		l.applyEntry(e)
	}

	for _, rec := range snap.Champions {
		if rec.TokenID != l.nextToken {
			return fmt.Errorf("restoring ledger: token %d out of order, want %d", rec.TokenID, l.nextToken)
		}
		if _, dup := l.champions[rec.Day]; dup {
			return fmt.Errorf("restoring ledger: day %d: %w", rec.Day, domain.ErrAlreadyMinted)
		}
		l.applyChampion(rec)
	}

	l.minter = snap.Minter
	l.logger.Info("ledger restored",
		"entries", len(snap.Entries),
		"champions", len(snap.Champions),
		"players", len(l.players),
	)
	return nil
}
