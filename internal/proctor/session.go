package proctor

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/proctor-backend/internal/model"
)

// Status is the lifecycle state of a session. It leaves Active exactly once.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusTerminated Status = "TERMINATED"
)

// Reason explains why a session left the Active status.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonTimeExpired     Reason = "TIME_EXPIRED"
	ReasonTooManyWarnings Reason = "TOO_MANY_WARNINGS"
	ReasonCompleted       Reason = "COMPLETED"
	// ReasonAborted marks a session torn down by the host (disconnect, shutdown)
	// before any other path ended it. It never redirects.
	ReasonAborted Reason = "ABORTED"
)

// Phase is the state of the quiz progression machine.
type Phase string

const (
	PhaseLoading        Phase = "LOADING"
	PhaseAwaitingAnswer Phase = "AWAITING_ANSWER"
	PhaseGraded         Phase = "GRADED"
	PhaseComplete       Phase = "COMPLETE"
	PhaseError          Phase = "ERROR"
)

// Session is the single mutable record shared by the timer, the escalation
// policy and the progression machine. It is only touched by the Controller
// while holding its lock.
type Session struct {
	ID          uuid.UUID
	Participant string
	Topic       string
	StartedAt   time.Time

	Status        Status
	Reason        Reason
	TicksLeft     int
	WarningCount  int
	Phase         Phase
	Questions     []model.Question
	Index         int
	Score         int
	Selected      string
	HasSelection  bool
	IsAnswered    bool
	FetchErrorMsg string
}

func newSession(participant, topic string, policy Policy, now time.Time) *Session {
	return &Session{
		ID:          uuid.New(),
		Participant: participant,
		Topic:       topic,
		StartedAt:   now,
		Status:      StatusActive,
		TicksLeft:   policy.DurationTicks,
		Phase:       PhaseLoading,
	}
}

func (s *Session) active() bool {
	return s.Status == StatusActive
}

// Snapshot is an immutable view of a Session, safe to hand to other goroutines.
type Snapshot struct {
	SessionID     uuid.UUID `json:"session_id"`
	Participant   string    `json:"participant"`
	Topic         string    `json:"topic"`
	Status        Status    `json:"status"`
	Reason        Reason    `json:"reason,omitempty"`
	TimeLeft      int       `json:"time_left"`
	WarningCount  int       `json:"warning_count"`
	WarningBudget int       `json:"warning_budget"`
	Phase         Phase     `json:"phase"`
	Index         int       `json:"index"`
	Total         int       `json:"total"`
	Score         int       `json:"score"`
	Selected      *string   `json:"selected,omitempty"`
	IsAnswered    bool      `json:"is_answered"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
}

func (s *Session) snapshot(budget int) Snapshot {
	snap := Snapshot{
		SessionID:     s.ID,
		Participant:   s.Participant,
		Topic:         s.Topic,
		Status:        s.Status,
		Reason:        s.Reason,
		TimeLeft:      s.TicksLeft,
		WarningCount:  s.WarningCount,
		WarningBudget: budget,
		Phase:         s.Phase,
		Index:         s.Index,
		Total:         len(s.Questions),
		Score:         s.Score,
		IsAnswered:    s.IsAnswered,
		Error:         s.FetchErrorMsg,
		StartedAt:     s.StartedAt,
	}
	if s.HasSelection {
		sel := s.Selected
		snap.Selected = &sel
	}
	return snap
}
