package main

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/baselume-ledger/internal/domain"
)

// playerAddress derives a stable address for simulated player idx
func playerAddress(idx int) domain.Address {
	return domain.MustParseAddress(fmt.Sprintf("0x%040x", idx+1))
}

// generator produces simulated submissions. Low indexes play better so the
// top of the board moves without being random noise.
type generator struct {
	rng         *rand.Rand
	players     int
	judgeShare  int
	hotPlayers  int
	hotPlayProb int
}

func newGenerator(seed int64, players, judgeShare int) *generator {
	hot := 20
	if players < hot {
		hot = players
	}
	return &generator{
		rng:         rand.New(rand.NewSource(seed)),
		players:     players,
		judgeShare:  judgeShare,
		hotPlayers:  hot,
		hotPlayProb: 70,
	}
}

func (g *generator) pickPlayer() int {
	if g.players > g.hotPlayers && g.rng.Intn(100) >= g.hotPlayProb {
		return g.rng.Intn(g.players-g.hotPlayers) + g.hotPlayers
	}
	return g.rng.Intn(g.hotPlayers)
}

func (g *generator) score(idx int) int64 {
	switch {
	case idx < 5:
		return int64(g.rng.Intn(4) + domain.MaxScore - 3)
	case idx < 20:
		return int64(g.rng.Intn(5) + 4)
	default:
		return int64(g.rng.Intn(domain.MaxScore) + domain.MinScore)
	}
}

// next returns a submission for a new game. A share of them carries raw
// judge output instead of a normalized score.
func (g *generator) next(idx int) domain.ScoreSubmission {
	sub := domain.ScoreSubmission{
		Player: playerAddress(idx).String(),
		GameID: uuid.New().String(),
	}
	score := g.score(idx)
	if g.rng.Intn(100) < g.judgeShare {
		sub.AIResponse = fmt.Sprintf(`{"score": %d, "feedback": "simulated judge"}`, score)
		return sub
	}
	sub.Score = score
	return sub
}
