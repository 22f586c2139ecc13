package model

type StandingsEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	Username       string `json:"username,omitempty"`
	TotalScore     int    `json:"total_score"`
	ProblemsSolved int    `json:"problems_solved"`
	TotalRuntimeMs int    `json:"total_runtime_ms"`
}
