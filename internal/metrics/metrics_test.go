package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/baselume-ledger/internal/domain"
)

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidScore), "invalid_score"},
		{domain.ErrDuplicateSubmission, "duplicate"},
		{domain.ErrDayNotElapsed, "day_not_elapsed"},
		{domain.ErrMinterNotSet, "minter_not_set"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserver(t *testing.T) {
	before := testutil.ToFloat64(ScoresRecorded)
	mintedBefore := testutil.ToFloat64(ChampionsMinted)

	var o Observer
	o.OnScoreRecorded(context.Background(), domain.ScoreRecorded{Score: 7, Day: 20000})
	o.OnChampionMinted(context.Background(), domain.DailyChampionMinted{TokenID: 1})

	if got := testutil.ToFloat64(ScoresRecorded) - before; got != 1 {
		t.Errorf("ScoresRecorded delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ChampionsMinted) - mintedBefore; got != 1 {
		t.Errorf("ChampionsMinted delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CurrentDay); got != 20000 {
		t.Errorf("CurrentDay = %v, want 20000", got)
	}
}
