package domain

import "time"

// ChampionRecord is written once per minted day and never changes
type ChampionRecord struct {
	Day      uint64    `json:"day"`
	Champion Address   `json:"champion"`
	Score    uint64    `json:"score"`
	TokenID  uint64    `json:"token_id"`
	MintedAt time.Time `json:"minted_at"`
}

// TokenDetails describes a minted champion token
type TokenDetails struct {
	TokenID  uint64  `json:"token_id"`
	Day      uint64  `json:"day"`
	Owner    Address `json:"owner"`
	Score    uint64  `json:"score"`
	TokenURI string  `json:"token_uri"`
}

// Event types emitted by the ledger
const (
	EventScoreRecorded       = "score_recorded"
	EventDailyWinnerDeclared = "daily_winner_declared"
	EventDailyChampionMinted = "daily_champion_minted"
)

// ScoreRecorded is emitted after a score is committed
type ScoreRecorded struct {
	Seq        uint64    `json:"seq"`
	Player     Address   `json:"player"`
	Score      uint64    `json:"score"`
	Timestamp  time.Time `json:"timestamp"`
	GameID     string    `json:"game_id"`
	Day        uint64    `json:"day"`
	TotalScore uint64    `json:"total_score"`
	DailyScore uint64    `json:"daily_score"`
}

// DailyWinnerDeclared is emitted when a day is finalized
type DailyWinnerDeclared struct {
	Winner     Address `json:"winner"`
	Day        uint64  `json:"day"`
	TotalScore uint64  `json:"total_score"`
}

// DailyChampionMinted is emitted after a champion token is assigned
type DailyChampionMinted struct {
	Winner  Address `json:"winner"`
	TokenID uint64  `json:"token_id"`
	Day     uint64  `json:"day"`
	Score   uint64  `json:"score"`
}
