package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/model"
)

// ErrInvalidQuestion reports a question that cannot be asked: missing text,
// fewer than two options, or an answer that is not one of the options.
var ErrInvalidQuestion = errors.New("invalid question in test series")

// maxResponseBytes bounds the decoded test-series body.
const maxResponseBytes = 4 << 20

// Client talks to the external test-series service.
type Client struct {
	baseURL  string
	http     *http.Client
	validate *govalidator.Validate
	log      zerolog.Logger
}

// NewClient creates a Client for the service at baseURL. A nil httpClient
// uses http.DefaultClient. Requests carry no timeout of their own; callers
// bound them with the context.
func NewClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		validate: govalidator.New(),
		log:      log.With().Str("component", "content_client").Logger(),
	}
}

// FetchQuestions retrieves the question set for topic via POST /testseries.
func (c *Client) FetchQuestions(ctx context.Context, topic string) ([]model.Question, error) {
	body, err := json.Marshal(model.TestSeriesRequest{InputValue: topic})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/testseries", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: status %d", model.ErrFetchFailed, resp.StatusCode)
	}

	var payload model.TestSeriesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", model.ErrFetchFailed, err)
	}

	if len(payload.Questions) == 0 {
		return nil, model.ErrNoQuestions
	}

	if err := c.validateQuestions(payload.Questions); err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("topic", topic).
		Int("questions", len(payload.Questions)).
		Msg("Test series fetched")

	return payload.Questions, nil
}

func (c *Client) validateQuestions(questions []model.Question) error {
	for i, q := range questions {
		if err := c.validate.Struct(q); err != nil {
			return fmt.Errorf("%w: question %d: %w", ErrInvalidQuestion, i, err)
		}
		if !q.HasOption(q.Answer) {
			return fmt.Errorf("%w: question %d: answer is not one of the options", ErrInvalidQuestion, i)
		}
	}
	return nil
}
