package model

import "errors"

var (
	// ErrFetchFailed reports that the test-series service could not deliver a question set.
	ErrFetchFailed = errors.New("failed to fetch questions")
	// ErrNoQuestions reports that the test-series service answered with an empty set.
	ErrNoQuestions = errors.New("no questions available")
)

// Question is a single multiple-choice question as served by the test-series service.
// Answer must equal one of Options.
type Question struct {
	Text    string   `json:"question" validate:"required"`
	Options []string `json:"options" validate:"min=2,dive,required"`
	Answer  string   `json:"answer" validate:"required"`
}

// HasOption reports whether choice is exactly one of the question's options.
func (q Question) HasOption(choice string) bool {
	for _, opt := range q.Options {
		if opt == choice {
			return true
		}
	}
	return false
}

// QuestionForParticipant is a question without the correct answer, sent to the browser.
type QuestionForParticipant struct {
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// TestSeriesRequest is the body of POST /testseries.
type TestSeriesRequest struct {
	InputValue string `json:"input_value"`
}

// TestSeriesResponse is the body returned by POST /testseries.
type TestSeriesResponse struct {
	Questions []Question `json:"questions" validate:"dive"`
}
