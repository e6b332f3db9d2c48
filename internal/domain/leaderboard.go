package domain

import (
	"time"
)

// Score bounds accepted by the ledger
const (
	MinScore        = 1
	MaxScore        = 10
	MaxGameIDLength = 100
)

// ScoreEntry is one accepted submission. Entries are immutable once appended.
type ScoreEntry struct {
	Seq       uint64    `json:"seq"`
	Player    Address   `json:"player"`
	Score     uint64    `json:"score"`
	Day       uint64    `json:"day"`
	GameID    string    `json:"game_id"`
	Timestamp time.Time `json:"timestamp"`
}

// LeaderboardEntry represents a single entry in the leaderboard
type LeaderboardEntry struct {
	Rank   int64   `json:"rank"`
	Player Address `json:"player"`
	Score  uint64  `json:"score"`
}

// DailyStats is derived from the entries of one day. Only NFTAwarded is stored.
type DailyStats struct {
	Day        uint64  `json:"day"`
	TotalGames uint64  `json:"total_games"`
	TotalScore uint64  `json:"total_score"`
	TopPlayer  Address `json:"top_player"`
	TopScore   uint64  `json:"top_score"`
	NFTAwarded bool    `json:"nft_awarded"`
}

// DailyWinner is the narrow form of the day's top scorer
type DailyWinner struct {
	Day    uint64  `json:"day"`
	Player Address `json:"player"`
	Score  uint64  `json:"score"`
}

// ScoreSubmission represents a request to record a score
type ScoreSubmission struct {
	Player string `json:"player"`
	Score  int64  `json:"score"`
	GameID string `json:"game_id"`
	// AIResponse carries raw model output when the pipeline did not
	// normalize the score itself.
	AIResponse string `json:"ai_response,omitempty"`
}

// BatchScoreSubmission represents multiple score submissions
type BatchScoreSubmission struct {
	Scores []ScoreSubmission `json:"scores"`
}

// SubmissionResult reports the outcome of one item in a batch
type SubmissionResult struct {
	Player string `json:"player"`
	GameID string `json:"game_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
