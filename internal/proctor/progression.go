package proctor

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/stemsi/proctor-backend/internal/model"
)

var (
	// ErrSessionEnded is returned for input that arrives after the session ended.
	ErrSessionEnded = errors.New("proctor: session has ended")
	// ErrNotAccepting is returned when no question is awaiting an answer,
	// including a second submission for an already answered question.
	ErrNotAccepting = errors.New("proctor: not accepting answers")
	// ErrUnknownOption is returned when the choice is not an option of the current question.
	ErrUnknownOption = errors.New("proctor: choice is not an option of the current question")
	// ErrNotLoading is returned when a question set arrives outside the loading phase.
	ErrNotLoading = errors.New("proctor: question set already resolved")
)

// HomePath is the navigation target of a forced termination.
const HomePath = "/"

// Grade is the result of one scored submission.
type Grade struct {
	Index         int    `json:"index"`
	Choice        string `json:"choice"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Score         int    `json:"score"`
}

// load installs the question set and enters AwaitingAnswer(0). An empty set
// moves the machine to the Error phase instead.
func (s *Session) load(questions []model.Question) error {
	if !s.active() {
		return ErrSessionEnded
	}
	if s.Phase != PhaseLoading {
		return ErrNotLoading
	}
	if len(questions) == 0 {
		s.Phase = PhaseError
		s.FetchErrorMsg = fetchFailureMessage(model.ErrNoQuestions)
		return model.ErrNoQuestions
	}
	s.Questions = append([]model.Question(nil), questions...)
	s.Index = 0
	s.resetAnswer()
	s.Phase = PhaseAwaitingAnswer
	return nil
}

// fail moves a loading machine to the terminal Error phase.
func (s *Session) fail(err error) bool {
	if !s.active() || s.Phase != PhaseLoading {
		return false
	}
	s.Phase = PhaseError
	s.FetchErrorMsg = fetchFailureMessage(err)
	return true
}

// submit scores choice against the current question. At most one submission
// per question is scored.
func (s *Session) submit(choice string) (Grade, error) {
	if !s.active() {
		return Grade{}, ErrSessionEnded
	}
	if s.Phase != PhaseAwaitingAnswer || s.IsAnswered {
		return Grade{}, ErrNotAccepting
	}

	q := s.Questions[s.Index]
	if !q.HasOption(choice) {
		return Grade{}, ErrUnknownOption
	}

	s.Selected = choice
	s.HasSelection = true
	s.IsAnswered = true
	s.Phase = PhaseGraded

	correct := choice == q.Answer
	if correct {
		s.Score++
	}

	return Grade{
		Index:         s.Index,
		Choice:        choice,
		Correct:       correct,
		CorrectAnswer: q.Answer,
		Score:         s.Score,
	}, nil
}

// advance leaves Graded(i). It reports ok=false when the machine is not in
// Graded(i), and complete=true when i was the last question.
func (s *Session) advance(i int) (complete, ok bool) {
	if !s.active() || s.Phase != PhaseGraded || s.Index != i {
		return false, false
	}
	if i+1 < len(s.Questions) {
		s.Index++
		s.resetAnswer()
		s.Phase = PhaseAwaitingAnswer
		return false, true
	}
	s.Phase = PhaseComplete
	return true, true
}

func (s *Session) resetAnswer() {
	s.Selected = ""
	s.HasSelection = false
	s.IsAnswered = false
}

func (s *Session) currentQuestion() model.QuestionForParticipant {
	q := s.Questions[s.Index]
	return model.QuestionForParticipant{
		Index:   s.Index,
		Total:   len(s.Questions),
		Text:    q.Text,
		Options: append([]string(nil), q.Options...),
	}
}

// ResultsPath builds the results view target carrying score, total and topic.
func ResultsPath(score, total int, topic string) string {
	return fmt.Sprintf("/quiz/congratulations?score=%d&total=%d&topic=%s", score, total, url.QueryEscape(topic))
}

func fetchFailureMessage(err error) string {
	if errors.Is(err, model.ErrNoQuestions) {
		return "No questions available"
	}
	return "Failed to fetch questions"
}
