package config

import "fmt"

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ParticipantActiveQuizKey holds the session ID of the participant's running quiz.
func (r *CacheKeyStruct) ParticipantActiveQuizKey(participant string) string {
	return fmt.Sprintf("participant:%s:active_quiz", participant)
}

// QuizSessionStateKey holds the latest snapshot of a running session.
func (r *CacheKeyStruct) QuizSessionStateKey(sessionID string) string {
	return fmt.Sprintf("quiz:%s:state", sessionID)
}

// QuizMonitorChannel is the Redis PubSub channel carrying live proctoring events.
func (r *CacheKeyStruct) QuizMonitorChannel() string {
	return "quiz:monitor"
}

var CacheKey = NewCacheKeyStruct()
