package ledger

import (
	"context"
	"sync"

	"github.com/baselume-ledger/internal/domain"
)

// Journal durably records ledger mutations. The ledger writes to it inside
// the critical section and only applies a change in memory once the journal
// accepted it.
type Journal interface {
	AppendScore(ctx context.Context, entry domain.ScoreEntry) error
	AppendChampion(ctx context.Context, record domain.ChampionRecord) error
	SaveMinter(ctx context.Context, minter domain.Address) error
}

// Observer receives committed ledger events. Calls happen after the ledger
// lock is released, so events from concurrent callers may arrive out of
// commit order. ScoreRecorded carries Seq and totals that never decrease;
// observers keeping state must not let an older event overwrite a newer one.
type Observer interface {
	OnScoreRecorded(ctx context.Context, ev domain.ScoreRecorded)
	OnDailyWinnerDeclared(ctx context.Context, ev domain.DailyWinnerDeclared)
	OnChampionMinted(ctx context.Context, ev domain.DailyChampionMinted)
}

// MemoryJournal keeps journal records in memory. It backs tests and
// single-process runs without Postgres.
type MemoryJournal struct {
	mu        sync.Mutex
	entries   []domain.ScoreEntry
	champions []domain.ChampionRecord
	minter    domain.Address
}

// NewMemoryJournal creates an empty in-memory journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// AppendScore stores a score entry
func (j *MemoryJournal) AppendScore(_ context.Context, entry domain.ScoreEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

// AppendChampion stores a champion record
func (j *MemoryJournal) AppendChampion(_ context.Context, record domain.ChampionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.champions = append(j.champions, record)
	return nil
}

// SaveMinter stores the minter link
func (j *MemoryJournal) SaveMinter(_ context.Context, minter domain.Address) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.minter = minter
	return nil
}

// Load returns copies of everything recorded so far
func (j *MemoryJournal) Load(_ context.Context) (*Snapshot, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &Snapshot{
		Entries:   append([]domain.ScoreEntry(nil), j.entries...),
		Champions: append([]domain.ChampionRecord(nil), j.champions...),
		Minter:    j.minter,
	}, nil
}

// Snapshot is the journal content needed to rebuild a ledger
type Snapshot struct {
	Entries   []domain.ScoreEntry
	Champions []domain.ChampionRecord
	Minter    domain.Address
}
