package model

import (
	"time"

	"github.com/google/uuid"
)

// QuizOutcome is the persisted record of a finished proctored quiz session.
type QuizOutcome struct {
	SessionID   uuid.UUID `json:"session_id"`
	Participant string    `json:"participant"`
	Topic       string    `json:"topic"`
	Reason      string    `json:"reason"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Warnings    int       `json:"warnings"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// QuizViolation is the persisted record of one integrity violation.
type QuizViolation struct {
	SessionID    uuid.UUID `json:"session_id"`
	Participant  string    `json:"participant"`
	Topic        string    `json:"topic"`
	Kind         string    `json:"kind"`
	WarningCount int       `json:"warning_count"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// StartQuizRequest carries the query parameters of the session stream endpoint.
type StartQuizRequest struct {
	Topic string `form:"topic" binding:"required,min=1,max=120"`
}

// OutcomeFilter narrows the admin outcome listing.
type OutcomeFilter struct {
	Topic       string `form:"topic" binding:"omitempty,max=120"`
	Participant string `form:"participant" binding:"omitempty,max=255"`
	Reason      string `form:"reason" binding:"omitempty,oneof=TIME_EXPIRED TOO_MANY_WARNINGS COMPLETED ABORTED"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PerPage     int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}
