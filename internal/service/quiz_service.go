package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/model"
	"github.com/stemsi/proctor-backend/internal/proctor"
)

// ErrSessionAlreadyActive is returned when the participant already runs a proctored quiz.
var ErrSessionAlreadyActive = errors.New("participant already has an active quiz session")

// QuestionSource supplies question sets.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, topic string) ([]model.Question, error)
}

// ParticipantLock guards the one-active-session-per-participant rule.
type ParticipantLock interface {
	AcquireParticipant(ctx context.Context, participant, sessionID string, ttl time.Duration) (bool, error)
	ReleaseParticipant(ctx context.Context, participant, sessionID string) error
}

// QuizOptions tunes session construction. Zero values use production defaults.
type QuizOptions struct {
	Policy    proctor.Policy
	Scheduler proctor.Scheduler
	LockTTL   time.Duration
}

// QuizService mounts proctored quiz sessions.
type QuizService struct {
	source   QuestionSource
	locks    ParticipantLock
	recorder proctor.Recorder
	opts     QuizOptions
	log      zerolog.Logger
}

// NewQuizService creates a new QuizService. recorder may be nil.
func NewQuizService(source QuestionSource, locks ParticipantLock, recorder proctor.Recorder, opts QuizOptions, log zerolog.Logger) *QuizService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &QuizService{
		source:   source,
		locks:    locks,
		recorder: recorder,
		opts:     opts,
		log:      log.With().Str("component", "quiz_service").Logger(),
	}
}

// StartSession mounts a session for participant on topic. The countdown and
// the integrity monitor start immediately; the question set is fetched in the
// background and handed to the controller when it arrives. The caller owns
// the returned controller and must Close it when the participant leaves.
func (s *QuizService) StartSession(ctx context.Context, participant, topic string, sink proctor.Sink) (*proctor.Controller, error) {
	id := uuid.New()
	sessionID := id.String()

	// The lock is taken before any controller exists so a refused start
	// leaves no outcome behind.
	ok, err := s.locks.AcquireParticipant(ctx, participant, sessionID, s.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire participant: %w", err)
	}
	if !ok {
		return nil, ErrSessionAlreadyActive
	}

	ctrl := proctor.NewController(ctx, participant, topic, sink, proctor.Options{
		SessionID: id,
		Policy:    s.opts.Policy,
		Scheduler: s.opts.Scheduler,
		Recorder:  s.recorder,
		Logger:    s.log,
	})

	go s.releaseOnEnd(ctrl, participant, sessionID)

	ctrl.Start()
	go s.loadQuestions(ctrl, topic)

	return ctrl, nil
}

func (s *QuizService) loadQuestions(ctrl *proctor.Controller, topic string) {
	ctx := ctrl.Context()
	questions, err := s.source.FetchQuestions(ctx, topic)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ctrl.FailFetch(err)
		return
	}
	_ = ctrl.LoadQuestions(questions)
}

func (s *QuizService) releaseOnEnd(ctrl *proctor.Controller, participant, sessionID string) {
	<-ctrl.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.locks.ReleaseParticipant(ctx, participant, sessionID); err != nil {
		s.log.Error().Err(err).
			Str("participant", participant).
			Str("session_id", sessionID).
			Msg("Failed to release participant lock")
	}
}
