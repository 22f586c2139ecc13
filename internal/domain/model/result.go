package model

import "time"

type ProblemStatus string

const (
	StatusNotAttempted        ProblemStatus = "NotAttempted"
	StatusAccepted            ProblemStatus = "Accepted"
	StatusPartiallyAccepted   ProblemStatus = "PartiallyAccepted"
	StatusWrongAnswer         ProblemStatus = "WrongAnswer"
	StatusTimeLimitExceeded   ProblemStatus = "TimeLimitExceeded"
	StatusMemoryLimitExceeded ProblemStatus = "MemoryLimitExceeded"
	StatusCompilationError    ProblemStatus = "CompilationError"
	StatusRuntimeError        ProblemStatus = "RuntimeError"
	StatusSystemError         ProblemStatus = "SystemError" // Error in the judge
)

func (s ProblemStatus) Valid() bool {
	switch s {
	case StatusNotAttempted, StatusAccepted, StatusPartiallyAccepted, StatusWrongAnswer,
		StatusTimeLimitExceeded, StatusMemoryLimitExceeded, StatusCompilationError,
		StatusRuntimeError, StatusSystemError:
		return true
	}
	return false
}

// ProblemResult is the judge's final verdict for one user on one contest problem.
type ProblemResult struct {
	UserID          string        `json:"user_id"`
	ContestID       string        `json:"contest_id"`
	ProblemID       string        `json:"problem_id"`
	Status          ProblemStatus `json:"status"`
	TestCasesPassed int           `json:"test_cases_passed"`
	TotalTestCases  int           `json:"total_test_cases"`
	MarksAwarded    int           `json:"marks_awarded"`
	MaxMarks        int           `json:"max_marks"`
	RuntimeMs       int           `json:"runtime_ms"`
	JudgedAt        time.Time     `json:"judged_at"`
}

type ContestResult struct {
	UserID            string          `json:"user_id"`
	ContestID         string          `json:"contest_id"`
	Rank              int             `json:"rank"`
	TotalParticipants int             `json:"total_participants"`
	TotalScore        int             `json:"total_score"`
	MaxScore          int             `json:"max_score"`
	Percentage        float64         `json:"percentage"`
	PerProblemResults []ProblemResult `json:"results"`
}
