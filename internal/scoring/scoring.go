// Package scoring turns raw judge output into a ledger score.
package scoring

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"

	"github.com/baselume-ledger/internal/domain"
)

// DefaultScore is used when the judge output carries no usable score.
const DefaultScore = 5

const (
	defaultFeedback  = "Good effort! Keep practicing."
	fallbackFeedback = "Drawing evaluated. Keep up the good work!"
)

var (
	jsonObject   = regexp.MustCompile(`(?s)\{.*\}`)
	scorePattern = regexp.MustCompile(`(?i)score[:\s]*(\d+)`)
)

// Criteria holds the per-aspect judge scores
type Criteria struct {
	Accuracy     int64 `json:"accuracy"`
	Creativity   int64 `json:"creativity"`
	Technique    int64 `json:"technique"`
	Completeness int64 `json:"completeness"`
}

// Result is a sanitized judge verdict. Score is always within the ledger range.
type Result struct {
	Score    int64    `json:"score"`
	Feedback string   `json:"feedback"`
	Criteria Criteria `json:"criteria"`
}

type rawResult struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
	Criteria struct {
		Accuracy     float64 `json:"accuracy"`
		Creativity   float64 `json:"creativity"`
		Technique    float64 `json:"technique"`
		Completeness float64 `json:"completeness"`
	} `json:"criteria"`
}

// ParseResult extracts a verdict from free-form judge text. It prefers an
// embedded JSON object and falls back to a "score: N" pattern. Missing or
// zero values become DefaultScore.
func ParseResult(text string) Result {
	if obj := jsonObject.FindString(text); obj != "" {
		var raw rawResult
		if err := json.Unmarshal([]byte(obj), &raw); err == nil {
			feedback := raw.Feedback
			if feedback == "" {
				feedback = defaultFeedback
			}
			return Result{
				Score:    sanitize(raw.Score),
				Feedback: feedback,
				Criteria: Criteria{
					Accuracy:     sanitize(raw.Criteria.Accuracy),
					Creativity:   sanitize(raw.Criteria.Creativity),
					Technique:    sanitize(raw.Criteria.Technique),
					Completeness: sanitize(raw.Criteria.Completeness),
				},
			}
		}
	}

	score := int64(DefaultScore)
	if m := scorePattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			score = Clamp(n)
		} else {
			score = domain.MaxScore
		}
	}
	return Result{
		Score:    score,
		Feedback: fallbackFeedback,
		Criteria: Criteria{
			Accuracy:     score,
			Creativity:   score,
			Technique:    score,
			Completeness: score,
		},
	}
}

// Clamp bounds n to the accepted score range
func Clamp(n int64) int64 {
	if n < domain.MinScore {
		return domain.MinScore
	}
	if n > domain.MaxScore {
		return domain.MaxScore
	}
	return n
}

func sanitize(v float64) int64 {
	if v == 0 || math.IsNaN(v) {
		return DefaultScore
	}
	// half-up, matching the judge's own rounding
	return Clamp(int64(math.Floor(v + 0.5)))
}

// Stats summarizes a set of scores
type Stats struct {
	Average      float64          `json:"average"`
	Highest      int64            `json:"highest"`
	Lowest       int64            `json:"lowest"`
	Distribution map[string]int64 `json:"distribution"`
}

// ScoreStats returns the average (one decimal), extremes and per-value
// distribution of scores. Empty input yields zero values.
func ScoreStats(scores []int64) Stats {
	if len(scores) == 0 {
		return Stats{Distribution: map[string]int64{}}
	}

	stats := Stats{
		Highest:      scores[0],
		Lowest:       scores[0],
		Distribution: make(map[string]int64, domain.MaxScore),
	}
	for i := int64(domain.MinScore); i <= domain.MaxScore; i++ {
		stats.Distribution[strconv.FormatInt(i, 10)] = 0
	}

	var sum int64
	for _, s := range scores {
		sum += s
		stats.Highest = max(stats.Highest, s)
		stats.Lowest = min(stats.Lowest, s)
		key := strconv.FormatInt(s, 10)
		if _, ok := stats.Distribution[key]; ok {
			stats.Distribution[key]++
		}
	}
	avg := float64(sum) / float64(len(scores))
	stats.Average = math.Round(avg*10) / 10
	return stats
}
