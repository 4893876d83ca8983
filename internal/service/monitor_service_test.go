package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stemsi/proctor-backend/internal/model"
	"github.com/stemsi/proctor-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOutcomes struct {
	byReason map[string]int64
	err      error
}

func (s stubOutcomes) List(context.Context, model.OutcomeFilter) ([]repository.OutcomeSummary, int64, error) {
	return nil, 0, nil
}

func (s stubOutcomes) CountsByReason(context.Context, string) (map[string]int64, error) {
	return s.byReason, s.err
}

type stubViolations struct {
	byKind map[string]int64
	err    error
}

func (s stubViolations) CountsByKind(context.Context, string) (map[string]int64, error) {
	return s.byKind, s.err
}

func TestMonitorService_GetOverview(t *testing.T) {
	svc := NewMonitorService(
		stubOutcomes{byReason: map[string]int64{"COMPLETED": 4, "TIME_EXPIRED": 1, "ABORTED": 2}},
		stubViolations{byKind: map[string]int64{"VISIBILITY": 3, "CLIPBOARD": 4}},
		nil,
	)

	ov, err := svc.GetOverview(context.Background(), "Go")
	require.NoError(t, err)
	assert.Equal(t, "Go", ov.Topic)
	assert.Equal(t, int64(7), ov.TotalSessions)
	assert.Equal(t, int64(7), ov.TotalViolations)
	assert.Equal(t, int64(2), ov.SessionsBy["ABORTED"])
}

func TestMonitorService_GetOverviewViolationCountsBestEffort(t *testing.T) {
	svc := NewMonitorService(
		stubOutcomes{byReason: map[string]int64{"COMPLETED": 2}},
		stubViolations{err: errors.New("statement timeout")},
		nil,
	)

	ov, err := svc.GetOverview(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ov.TotalSessions)
	assert.Zero(t, ov.TotalViolations)
	assert.NotNil(t, ov.ViolationsBy)
	assert.Empty(t, ov.ViolationsBy)
}

func TestMonitorService_GetOverviewSessionCountsRequired(t *testing.T) {
	svc := NewMonitorService(
		stubOutcomes{err: errors.New("connection refused")},
		stubViolations{byKind: map[string]int64{"VISIBILITY": 1}},
		nil,
	)

	ov, err := svc.GetOverview(context.Background(), "")
	assert.Error(t, err)
	assert.Nil(t, ov)
}

func TestMonitorService_GetOverviewEmpty(t *testing.T) {
	svc := NewMonitorService(stubOutcomes{}, stubViolations{}, nil)

	ov, err := svc.GetOverview(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, ov.SessionsBy)
	assert.Zero(t, ov.TotalSessions)
}
