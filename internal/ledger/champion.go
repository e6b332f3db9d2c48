package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/baselume-ledger/internal/dayclock"
	"github.com/baselume-ledger/internal/domain"
)

// MintDailyChampion awards the next token to the winner of a finished day.
// Anyone may call it; each day can be minted once.
func (l *Ledger) MintDailyChampion(ctx context.Context, day uint64) (domain.ChampionRecord, error) {
	l.mu.Lock()

	now := l.days.Now()
	if current := dayclock.DayOf(now); day >= current {
		l.mu.Unlock()
		return domain.ChampionRecord{}, fmt.Errorf("day %d (current %d): %w", day, current, domain.ErrDayNotElapsed)
	}
	ds := l.daily[day]
	if ds != nil && ds.awarded {
		l.mu.Unlock()
		return domain.ChampionRecord{}, fmt.Errorf("day %d: %w", day, domain.ErrAlreadyMinted)
	}
	top, ok := ds.winner()
	if !ok {
		l.mu.Unlock()
		return domain.ChampionRecord{}, fmt.Errorf("day %d: %w", day, domain.ErrNoWinnerForDay)
	}
	if l.minter.IsZero() {
		l.mu.Unlock()
		return domain.ChampionRecord{}, domain.ErrMinterNotSet
	}

	rec := domain.ChampionRecord{
		Day:      day,
		Champion: top.player,
		Score:    top.score,
		TokenID:  l.nextToken,
		MintedAt: now,
	}
	if err := l.journal.AppendChampion(ctx, rec); err != nil {
		l.mu.Unlock()
		return domain.ChampionRecord{}, fmt.Errorf("journaling champion: %w", err)
	}
	l.applyChampion(rec)
	totalScore := ds.totalScore
	observers := l.observers
	l.mu.Unlock()

	l.logger.Info("daily champion minted",
		"day", rec.Day,
		"champion", rec.Champion,
		"score", rec.Score,
		"token_id", rec.TokenID,
	)
	for _, o := range observers {
		o.OnDailyWinnerDeclared(ctx, domain.DailyWinnerDeclared{
			Winner:     rec.Champion,
			Day:        rec.Day,
			TotalScore: totalScore,
		})
		o.OnChampionMinted(ctx, domain.DailyChampionMinted{
			Winner:  rec.Champion,
			TokenID: rec.TokenID,
			Day:     rec.Day,
			Score:   rec.Score,
		})
	}
	return rec, nil
}

// applyChampion records a mint. Callers hold the write lock.
func (l *Ledger) applyChampion(rec domain.ChampionRecord) {
	ds, ok := l.daily[rec.Day]
	if !ok {
		ds = newDayState()
		l.daily[rec.Day] = ds
	}
	ds.awarded = true
	l.champions[rec.Day] = rec
	l.tokens = append(l.tokens, rec)
	l.owned[rec.Champion] = append(l.owned[rec.Champion], rec.TokenID)
	l.nextToken = rec.TokenID + 1
}

// DailyChampion returns the record for day, or zero values if unminted
func (l *Ledger) DailyChampion(day uint64) domain.ChampionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rec, ok := l.champions[day]; ok {
		return rec
	}
	return domain.ChampionRecord{Day: day, Champion: domain.ZeroAddress}
}

// IsChampion reports whether addr owns at least one token
func (l *Ledger) IsChampion(addr domain.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.owned[addr]) > 0
}

// OwnedTokens returns the token ids owned by addr
func (l *Ledger) OwnedTokens(addr domain.Address) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]uint64{}, l.owned[addr]...)
}

// BalanceOf counts the tokens owned by addr
func (l *Ledger) BalanceOf(addr domain.Address) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.owned[addr])
}

// TotalSupply counts minted tokens
func (l *Ledger) TotalSupply() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tokens)
}

func (l *Ledger) token(tokenID uint64) (domain.ChampionRecord, error) {
	if tokenID == 0 || tokenID > uint64(len(l.tokens)) {
		return domain.ChampionRecord{}, fmt.Errorf("token %d: %w", tokenID, domain.ErrTokenNotFound)
	}
	return l.tokens[tokenID-1], nil
}

// OwnerOf returns the owner of a token
func (l *Ledger) OwnerOf(tokenID uint64) (domain.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, err := l.token(tokenID)
	if err != nil {
		return "", err
	}
	return rec.Champion, nil
}

// TokenURI returns the metadata URI of a token
func (l *Ledger) TokenURI(tokenID uint64) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, err := l.token(tokenID); err != nil {
		return "", err
	}
	return l.baseURI + strconv.FormatUint(tokenID, 10), nil
}

// TokenDetails returns everything known about a token
func (l *Ledger) TokenDetails(tokenID uint64) (domain.TokenDetails, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, err := l.token(tokenID)
	if err != nil {
		return domain.TokenDetails{}, err
	}
	return domain.TokenDetails{
		TokenID:  rec.TokenID,
		Day:      rec.Day,
		Owner:    rec.Champion,
		Score:    rec.Score,
		TokenURI: l.baseURI + strconv.FormatUint(tokenID, 10),
	}, nil
}

// ChampionsInRange returns minted records for days in [startDay, endDay],
// ordered by day
func (l *Ledger) ChampionsInRange(startDay, endDay uint64) []domain.ChampionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []domain.ChampionRecord{}
	if endDay < startDay {
		return out
	}
	for _, rec := range l.tokens {
		if rec.Day >= startDay && rec.Day <= endDay {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// UnmintedDays lists days in [from, to] that have entries but no champion
func (l *Ledger) UnmintedDays(from, to uint64) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var days []uint64
	for day, ds := range l.daily {
		if day >= from && day <= to && !ds.awarded && ds.totalGames > 0 {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}
