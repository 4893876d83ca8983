package service

import (
	"context"
	"sync"

	"github.com/stemsi/proctor-backend/internal/model"
	"github.com/stemsi/proctor-backend/internal/repository"
)

// OutcomeReader reads finished sessions.
type OutcomeReader interface {
	List(ctx context.Context, filter model.OutcomeFilter) ([]repository.OutcomeSummary, int64, error)
	CountsByReason(ctx context.Context, topic string) (map[string]int64, error)
}

// ViolationCounter aggregates recorded violations.
type ViolationCounter interface {
	CountsByKind(ctx context.Context, topic string) (map[string]int64, error)
}

// StateReader loads the last live snapshot of a running session.
type StateReader interface {
	LoadState(ctx context.Context, sessionID string) ([]byte, error)
}

// MonitorService serves the proctoring dashboard.
type MonitorService struct {
	outcomes   OutcomeReader
	violations ViolationCounter
	states     StateReader
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(outcomes OutcomeReader, violations ViolationCounter, states StateReader) *MonitorService {
	return &MonitorService{
		outcomes:   outcomes,
		violations: violations,
		states:     states,
	}
}

// Overview aggregates finished sessions and violations for one topic (or all).
type Overview struct {
	Topic           string           `json:"topic,omitempty"`
	SessionsBy      map[string]int64 `json:"sessions_by_reason"`
	ViolationsBy    map[string]int64 `json:"violations_by_kind"`
	TotalSessions   int64            `json:"total_sessions"`
	TotalViolations int64            `json:"total_violations"`
}

// GetOverview fetches both aggregates concurrently. Session counts are
// critical; violation counts are best-effort.
func (s *MonitorService) GetOverview(ctx context.Context, topic string) (*Overview, error) {
	var (
		byReason, byKind   map[string]int64
		reasonErr, kindErr error
		wg                 sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		byReason, reasonErr = s.outcomes.CountsByReason(ctx, topic)
	}()
	go func() {
		defer wg.Done()
		byKind, kindErr = s.violations.CountsByKind(ctx, topic)
	}()
	wg.Wait()

	if reasonErr != nil {
		return nil, reasonErr
	}

	if byReason == nil {
		byReason = map[string]int64{}
	}
	ov := &Overview{
		Topic:        topic,
		SessionsBy:   byReason,
		ViolationsBy: map[string]int64{},
	}
	for _, n := range byReason {
		ov.TotalSessions += n
	}
	if kindErr == nil && byKind != nil {
		ov.ViolationsBy = byKind
		for _, n := range byKind {
			ov.TotalViolations += n
		}
	}
	return ov, nil
}

// ListOutcomes returns finished sessions matching filter.
func (s *MonitorService) ListOutcomes(ctx context.Context, filter model.OutcomeFilter) ([]repository.OutcomeSummary, int64, error) {
	return s.outcomes.List(ctx, filter)
}

// LiveState returns the last stored snapshot of a running session as raw JSON.
func (s *MonitorService) LiveState(ctx context.Context, sessionID string) ([]byte, error) {
	return s.states.LoadState(ctx, sessionID)
}
