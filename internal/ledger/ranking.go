package ledger

import (
	"time"

	"github.com/google/btree"

	"github.com/baselume-ledger/internal/domain"
)

// rankKey orders players by score descending, then by who got there first.
// seq is unique per player within an index, so the order is total.
type rankKey struct {
	score     uint64
	firstSeen int64
	seq       uint64
	player    domain.Address
}

func rankLess(a, b rankKey) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.firstSeen != b.firstSeen {
		return a.firstSeen < b.firstSeen
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.player < b.player
}

type dailyScore struct {
	score     uint64
	firstSeen time.Time
	firstSeq  uint64
}

func (s *dailyScore) key(player domain.Address) rankKey {
	return rankKey{
		score:     s.score,
		firstSeen: s.firstSeen.UnixNano(),
		seq:       s.firstSeq,
		player:    player,
	}
}

// dayState aggregates one day. awarded is the only field that is not
// derivable from the entries.
type dayState struct {
	totalGames uint64
	totalScore uint64
	awarded    bool
	scores     map[domain.Address]*dailyScore
	index      *btree.BTreeG[rankKey]
}

func newDayState() *dayState {
	return &dayState{
		scores: make(map[domain.Address]*dailyScore),
		index:  btree.NewG(btreeDegree, rankLess),
	}
}

func (d *dayState) add(entry domain.ScoreEntry) {
	s, ok := d.scores[entry.Player]
	if !ok {
		s = &dailyScore{firstSeen: entry.Timestamp, firstSeq: entry.Seq}
		d.scores[entry.Player] = s
	} else {
		d.index.Delete(s.key(entry.Player))
	}
	s.score += entry.Score
	d.index.ReplaceOrInsert(s.key(entry.Player))

	d.totalGames++
	d.totalScore += entry.Score
}

func (d *dayState) winner() (rankKey, bool) {
	if d == nil || d.totalGames == 0 {
		return rankKey{}, false
	}
	return d.index.Min()
}

func collectTop(index *btree.BTreeG[rankKey], limit int) []domain.LeaderboardEntry {
	if limit < 1 || index.Len() == 0 {
		return []domain.LeaderboardEntry{}
	}
	if limit > index.Len() {
		limit = index.Len()
	}
	entries := make([]domain.LeaderboardEntry, 0, limit)
	index.Ascend(func(k rankKey) bool {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:   int64(len(entries) + 1),
			Player: k.player,
			Score:  k.score,
		})
		return len(entries) < limit
	})
	return entries
}

// TopPlayers returns up to limit players by lifetime score. A limit below 1
// yields an empty result.
func (l *Ledger) TopPlayers(limit int) []domain.LeaderboardEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return collectTop(l.lifetime, limit)
}

// DailyTopPlayers returns up to limit players by score on day
func (l *Ledger) DailyTopPlayers(day uint64, limit int) []domain.LeaderboardEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ds, ok := l.daily[day]
	if !ok {
		return []domain.LeaderboardEntry{}
	}
	return collectTop(ds.index, limit)
}

// PlayerRank returns a player's 1-based lifetime rank, 0 when unknown
func (l *Ledger) PlayerRank(player domain.Address) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.players[player]
	if !ok {
		return 0
	}
	target := p.key(player)
	var rank int64
	l.lifetime.AscendLessThan(target, func(rankKey) bool {
		rank++
		return true
	})
	return rank + 1
}

// DailyStats summarizes day. Days without entries report zero values.
func (l *Ledger) DailyStats(day uint64) domain.DailyStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := domain.DailyStats{Day: day, TopPlayer: domain.ZeroAddress}
	ds, ok := l.daily[day]
	if !ok {
		return stats
	}
	stats.TotalGames = ds.totalGames
	stats.TotalScore = ds.totalScore
	stats.NFTAwarded = ds.awarded
	if top, ok := ds.winner(); ok {
		stats.TopPlayer = top.player
		stats.TopScore = top.score
	}
	return stats
}

// DailyWinner returns the top scorer of day, or the zero address
func (l *Ledger) DailyWinner(day uint64) domain.DailyWinner {
	l.mu.RLock()
	defer l.mu.RUnlock()

	w := domain.DailyWinner{Day: day, Player: domain.ZeroAddress}
	if top, ok := l.daily[day].winner(); ok {
		w.Player = top.player
		w.Score = top.score
	}
	return w
}
