package ledger

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/baselume-ledger/internal/domain"
)

type recordingObserver struct {
	mu      sync.Mutex
	scores  []domain.ScoreRecorded
	winners []domain.DailyWinnerDeclared
	mints   []domain.DailyChampionMinted
}

func (o *recordingObserver) OnScoreRecorded(_ context.Context, ev domain.ScoreRecorded) {
	o.mu.Lock()
	o.scores = append(o.scores, ev)
	o.mu.Unlock()
}

func (o *recordingObserver) OnDailyWinnerDeclared(_ context.Context, ev domain.DailyWinnerDeclared) {
	o.mu.Lock()
	o.winners = append(o.winners, ev)
	o.mu.Unlock()
}

func (o *recordingObserver) OnChampionMinted(_ context.Context, ev domain.DailyChampionMinted) {
	o.mu.Lock()
	o.mints = append(o.mints, ev)
	o.mu.Unlock()
}

func linkMinter(t *testing.T, l *Ledger) {
	t.Helper()
	if err := l.SetChampionMinter(context.Background(), owner, minter); err != nil {
		t.Fatalf("SetChampionMinter error = %v", err)
	}
}

func TestMintDailyChampion_Scenario(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	linkMinter(t, l)
	obs := &recordingObserver{}
	l.Subscribe(obs)

	mustRecord(t, l, alice, 8, "g1")
	mustRecord(t, l, bob, 6, "g2")

	top := l.TopPlayers(2)
	want := []domain.LeaderboardEntry{
		{Rank: 1, Player: alice, Score: 8},
		{Rank: 2, Player: bob, Score: 6},
	}
	if !reflect.DeepEqual(top, want) {
		t.Fatalf("TopPlayers(2) = %+v, want %+v", top, want)
	}

	clock.Advance(24 * time.Hour)
	rec, err := l.MintDailyChampion(context.Background(), 100)
	if err != nil {
		t.Fatalf("MintDailyChampion error = %v", err)
	}
	if rec.TokenID != 1 {
		t.Errorf("TokenID = %d, want 1", rec.TokenID)
	}

	champ := l.DailyChampion(100)
	if champ.Champion != alice || champ.Score != 8 || champ.TokenID != 1 {
		t.Errorf("DailyChampion = %+v, want (alice, 8, 1)", champ)
	}
	if !l.IsChampion(alice) {
		t.Error("alice should be a champion")
	}
	if l.IsChampion(bob) {
		t.Error("bob should not be a champion")
	}
	if !l.DailyStats(100).NFTAwarded {
		t.Error("DailyStats should report NFTAwarded")
	}

	_, err = l.MintDailyChampion(context.Background(), 100)
	if !errors.Is(err, domain.ErrAlreadyMinted) {
		t.Errorf("second mint error = %v, want ErrAlreadyMinted", err)
	}
	if again := l.DailyChampion(100); again != champ {
		t.Errorf("DailyChampion changed after rejected mint: %+v", again)
	}

	if len(obs.scores) != 2 {
		t.Errorf("observer saw %d score events, want 2", len(obs.scores))
	}
	if obs.scores[1].TotalScore != 6 || obs.scores[1].DailyScore != 6 {
		t.Errorf("score event totals = %+v", obs.scores[1])
	}
	if len(obs.mints) != 1 || obs.mints[0].TokenID != 1 || obs.mints[0].Winner != alice {
		t.Errorf("mint events = %+v", obs.mints)
	}
	if len(obs.winners) != 1 || obs.winners[0].TotalScore != 14 {
		t.Errorf("winner events = %+v", obs.winners)
	}
}

func TestMintDailyChampion_CurrentDayNotElapsed(t *testing.T) {
	l, _, _ := newTestLedger(t)
	linkMinter(t, l)
	mustRecord(t, l, alice, 8, "g1")

	for _, day := range []uint64{l.CurrentDay(), l.CurrentDay() + 1} {
		if _, err := l.MintDailyChampion(context.Background(), day); !errors.Is(err, domain.ErrDayNotElapsed) {
			t.Errorf("mint day %d error = %v, want ErrDayNotElapsed", day, err)
		}
	}
	if l.TotalSupply() != 0 {
		t.Error("no token should be minted")
	}
}

func TestMintDailyChampion_CurrentDayFailsEvenWithoutMinter(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if _, err := l.MintDailyChampion(context.Background(), l.CurrentDay()); !errors.Is(err, domain.ErrDayNotElapsed) {
		t.Errorf("error = %v, want ErrDayNotElapsed", err)
	}
}

func TestMintDailyChampion_NoWinner(t *testing.T) {
	l, _, _ := newTestLedger(t)
	linkMinter(t, l)
	if _, err := l.MintDailyChampion(context.Background(), 99); !errors.Is(err, domain.ErrNoWinnerForDay) {
		t.Errorf("error = %v, want ErrNoWinnerForDay", err)
	}
	if l.DailyStats(99).NFTAwarded {
		t.Error("empty day must not be flagged awarded")
	}
}

func TestMintDailyChampion_MinterNotSet(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	mustRecord(t, l, alice, 8, "g1")
	clock.Advance(24 * time.Hour)

	if _, err := l.MintDailyChampion(context.Background(), 100); !errors.Is(err, domain.ErrMinterNotSet) {
		t.Fatalf("error = %v, want ErrMinterNotSet", err)
	}
	linkMinter(t, l)
	if _, err := l.MintDailyChampion(context.Background(), 100); err != nil {
		t.Errorf("mint after linking error = %v", err)
	}
}

func TestMintDailyChampion_JournalFailure(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	linkMinter(t, l)
	mustRecord(t, l, alice, 8, "g1")
	clock.Advance(24 * time.Hour)

	l.journal = &failingJournal{}
	if _, err := l.MintDailyChampion(context.Background(), 100); err == nil {
		t.Fatal("expected journal error")
	}
	if l.TotalSupply() != 0 || l.IsChampion(alice) || l.DailyStats(100).NFTAwarded {
		t.Error("state changed despite journal failure")
	}
}

func TestMintDailyChampion_TokenIDsAreGlobal(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	linkMinter(t, l)

	mustRecord(t, l, alice, 8, "d100")
	clock.Advance(24 * time.Hour)
	mustRecord(t, l, bob, 3, "d101")
	clock.Advance(24 * time.Hour)
	mustRecord(t, l, alice, 2, "d102")
	clock.Advance(24 * time.Hour)

	// Mint out of day order; token ids still follow mint order.
	for i, day := range []uint64{101, 100, 102} {
		rec, err := l.MintDailyChampion(context.Background(), day)
		if err != nil {
			t.Fatalf("mint day %d error = %v", day, err)
		}
		if rec.TokenID != uint64(i+1) {
			t.Errorf("mint day %d TokenID = %d, want %d", day, rec.TokenID, i+1)
		}
	}

	if got := l.OwnedTokens(alice); !reflect.DeepEqual(got, []uint64{2, 3}) {
		t.Errorf("OwnedTokens(alice) = %v, want [2 3]", got)
	}
	if got := l.OwnedTokens(carol); len(got) != 0 {
		t.Errorf("OwnedTokens(carol) = %v, want empty", got)
	}
	if l.BalanceOf(alice) != 2 || l.BalanceOf(bob) != 1 {
		t.Errorf("balances = alice:%d bob:%d", l.BalanceOf(alice), l.BalanceOf(bob))
	}
	if l.TotalSupply() != 3 {
		t.Errorf("TotalSupply = %d, want 3", l.TotalSupply())
	}

	holder, err := l.OwnerOf(1)
	if err != nil || holder != bob {
		t.Errorf("OwnerOf(1) = %s, %v", holder, err)
	}
	uri, err := l.TokenURI(2)
	if err != nil || uri != "https://api.baselume.xyz/nft/metadata/2" {
		t.Errorf("TokenURI(2) = %q, %v", uri, err)
	}
	details, err := l.TokenDetails(3)
	if err != nil {
		t.Fatal(err)
	}
	if details.Day != 102 || details.Owner != alice || details.Score != 2 {
		t.Errorf("TokenDetails(3) = %+v", details)
	}
	for _, id := range []uint64{0, 4} {
		if _, err := l.TokenDetails(id); !errors.Is(err, domain.ErrTokenNotFound) {
			t.Errorf("TokenDetails(%d) error = %v, want ErrTokenNotFound", id, err)
		}
	}

	inRange := l.ChampionsInRange(100, 101)
	if len(inRange) != 2 || inRange[0].Day != 100 || inRange[1].Day != 101 {
		t.Errorf("ChampionsInRange(100, 101) = %+v", inRange)
	}
	if got := l.ChampionsInRange(105, 100); len(got) != 0 {
		t.Errorf("inverted range = %+v, want empty", got)
	}
}

func TestMintDailyChampion_ConcurrentCallsMintOnce(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	linkMinter(t, l)
	mustRecord(t, l, alice, 8, "g1")
	clock.Advance(24 * time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.MintDailyChampion(context.Background(), 100)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrAlreadyMinted) {
				t.Errorf("unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successful mints = %d, want 1", successes)
	}
	if l.TotalSupply() != 1 {
		t.Errorf("TotalSupply = %d, want 1", l.TotalSupply())
	}
}

func TestUnmintedDays(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	linkMinter(t, l)
	mustRecord(t, l, alice, 8, "d100")
	clock.Advance(48 * time.Hour)
	mustRecord(t, l, bob, 3, "d102")
	clock.Advance(24 * time.Hour)

	if got := l.UnmintedDays(95, 102); !reflect.DeepEqual(got, []uint64{100, 102}) {
		t.Errorf("UnmintedDays = %v, want [100 102]", got)
	}
	if _, err := l.MintDailyChampion(context.Background(), 100); err != nil {
		t.Fatal(err)
	}
	if got := l.UnmintedDays(95, 102); !reflect.DeepEqual(got, []uint64{102}) {
		t.Errorf("UnmintedDays after mint = %v, want [102]", got)
	}
}
