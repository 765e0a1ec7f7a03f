// Package opentdb fetches trivia questions from the Open Trivia Database.
package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"triviacast-service/internal/domain"
)

const DefaultBaseURL = "https://opentdb.com"

// OpenTDB response codes.
const (
	codeSuccess      = 0
	codeNoResults    = 1
	codeInvalidParam = 2
	codeRateLimit    = 5
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type apiResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []domain.Question `json:"results"`
}

// FetchQuestions calls /api.php and decodes the HTML entities OpenTDB embeds in text.
func (c *Client) FetchQuestions(ctx context.Context, query domain.QuestionQuery) ([]domain.Question, error) {
	query = query.Normalize()

	params := url.Values{}
	params.Set("amount", strconv.Itoa(query.Amount))
	if query.Category != "" {
		params.Set("category", query.Category)
	}
	if query.Difficulty != "" {
		params.Set("difficulty", query.Difficulty)
	}
	if query.Type != "" {
		params.Set("type", query.Type)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api.php?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: opentdb: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: opentdb status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode opentdb: %v", domain.ErrUpstream, err)
	}

	switch body.ResponseCode {
	case codeSuccess:
	case codeNoResults:
		return nil, domain.ErrNoQuestions
	case codeInvalidParam:
		return nil, fmt.Errorf("%w: rejected by opentdb", domain.ErrInvalidQuery)
	case codeRateLimit:
		return nil, fmt.Errorf("%w: opentdb rate limited", domain.ErrUpstream)
	default:
		return nil, fmt.Errorf("%w: opentdb response code %d", domain.ErrUpstream, body.ResponseCode)
	}

	out := make([]domain.Question, len(body.Results))
	for i, q := range body.Results {
		out[i] = unescape(q)
	}
	return out, nil
}

func unescape(q domain.Question) domain.Question {
	q.Category = html.UnescapeString(q.Category)
	q.Question = html.UnescapeString(q.Question)
	q.CorrectAnswer = html.UnescapeString(q.CorrectAnswer)
	incorrect := make([]string, len(q.IncorrectAnswers))
	for i, a := range q.IncorrectAnswers {
		incorrect[i] = html.UnescapeString(a)
	}
	q.IncorrectAnswers = incorrect
	return q
}
