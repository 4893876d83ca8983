package service

import (
	"testing"
	"time"

	"github.com/stemsi/proctor-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_IssueAndValidate(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "test-secret"})

	token, err := svc.IssueToken("ana@example.com", RoleParticipant, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Subject)
	assert.Equal(t, RoleParticipant, claims.Role)
}

func TestAuthService_ValidateRejects(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "test-secret"})
	other := NewAuthService(&config.Config{JWTSecret: "other-secret"})

	foreign, err := other.IssueToken("ana@example.com", RoleAdmin, time.Minute)
	require.NoError(t, err)
	expired, err := svc.IssueToken("ana@example.com", RoleAdmin, -time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
