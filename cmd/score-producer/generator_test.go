package main

import (
	"testing"

	"github.com/baselume-ledger/internal/domain"
	"github.com/baselume-ledger/internal/service"
)

func TestPlayerAddress(t *testing.T) {
	if got := playerAddress(0); got != "0x0000000000000000000000000000000000000001" {
		t.Errorf("playerAddress(0) = %s", got)
	}
	if playerAddress(41) == playerAddress(42) {
		t.Error("addresses must be distinct")
	}
}

func TestGeneratorProducesValidSubmissions(t *testing.T) {
	g := newGenerator(1, 50, 30)
	games := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		idx := g.pickPlayer()
		if idx < 0 || idx >= 50 {
			t.Fatalf("player index %d out of range", idx)
		}
		sub := g.next(idx)
		if _, err := domain.ParseAddress(sub.Player); err != nil {
			t.Fatalf("invalid player %q", sub.Player)
		}
		if games[sub.GameID] {
			t.Fatalf("game id %s reused", sub.GameID)
		}
		games[sub.GameID] = true

		score := service.ResolveScore(sub)
		if score < domain.MinScore || score > domain.MaxScore {
			t.Fatalf("score %d out of range for %+v", score, sub)
		}
	}
}

func TestGeneratorFewPlayers(t *testing.T) {
	g := newGenerator(1, 3, 0)
	for i := 0; i < 100; i++ {
		if idx := g.pickPlayer(); idx >= 3 {
			t.Fatalf("player index %d out of range", idx)
		}
	}
}
