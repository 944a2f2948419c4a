// trivia/client.go - Client for the external question source (Open Trivia DB style API)
package trivia

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"trivia/config"
)

// Response codes returned by the question API.
const (
	CodeSuccess       = 0
	CodeNoResults     = 1
	CodeInvalidParam  = 2
	CodeTokenNotFound = 3
	CodeTokenEmpty    = 4
	CodeRateLimit     = 5
)

var (
	ErrNoResults = errors.New("question source has no results for the query")
	ErrRateLimit = errors.New("question source rate limit exceeded")
)

// APIError is a non-success response_code from the question source.
type APIError struct {
	Code int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("question source response_code=%d", e.Code)
}

// Category is a category as listed by the question source.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Question is one fetched question with HTML entities already decoded.
type Question struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Query selects a batch of questions. Zero values mean "any".
type Query struct {
	Amount     int
	CategoryID int
	Difficulty string
}

type tokenResponse struct {
	ResponseCode int    `json:"response_code"`
	Token        string `json:"token"`
}

type categoriesResponse struct {
	TriviaCategories []Category `json:"trivia_categories"`
}

type questionsResponse struct {
	ResponseCode int        `json:"response_code"`
	Results      []Question `json:"results"`
}

// Client talks to the question source. A session token is requested lazily
// and reset once when the source reports it missing or exhausted.
type Client struct {
	questionsURL  string
	tokenURL      string
	categoriesURL string
	httpClient    *http.Client
	logger        *slog.Logger

	mu    sync.Mutex
	token string
}

// NewClient builds a client from the configured endpoints.
func NewClient(cfg *config.Settings, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		questionsURL:  cfg.TriviaAPI,
		tokenURL:      cfg.TriviaTokenAPI,
		categoriesURL: cfg.TriviaCategoryAPI,
		httpClient:    httpClient,
		logger:        logger.With(slog.String("component", "trivia-client")),
	}
}

// Categories lists the categories offered by the source.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var resp categoriesResponse
	if err := c.getJSON(ctx, c.categoriesURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	out := make([]Category, 0, len(resp.TriviaCategories))
	for _, cat := range resp.TriviaCategories {
		cat.Name = html.UnescapeString(cat.Name)
		out = append(out, cat)
	}
	return out, nil
}

// Questions fetches one batch. With a token, repeated calls do not return
// questions already served in the token's lifetime.
func (c *Client) Questions(ctx context.Context, q Query) ([]Question, error) {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.fetchQuestions(ctx, q, token)
	if err != nil {
		return nil, err
	}
	if resp.ResponseCode == CodeTokenNotFound || resp.ResponseCode == CodeTokenEmpty {
		c.logger.Info("trivia_token_reset", slog.Int("response_code", resp.ResponseCode))
		if token, err = c.resetToken(ctx, token, resp.ResponseCode); err != nil {
			return nil, err
		}
		if resp, err = c.fetchQuestions(ctx, q, token); err != nil {
			return nil, err
		}
	}

	switch resp.ResponseCode {
	case CodeSuccess:
	case CodeNoResults:
		return nil, ErrNoResults
	case CodeRateLimit:
		return nil, ErrRateLimit
	default:
		return nil, &APIError{Code: resp.ResponseCode}
	}

	out := make([]Question, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, decode(r))
	}
	return out, nil
}

func (c *Client) fetchQuestions(ctx context.Context, q Query, token string) (*questionsResponse, error) {
	params := url.Values{}
	amount := q.Amount
	if amount <= 0 {
		amount = 10
	}
	params.Set("amount", strconv.Itoa(amount))
	if q.CategoryID > 0 {
		params.Set("category", strconv.Itoa(q.CategoryID))
	}
	if q.Difficulty != "" {
		params.Set("difficulty", q.Difficulty)
	}
	if token != "" {
		params.Set("token", token)
	}

	var resp questionsResponse
	if err := c.getJSON(ctx, c.questionsURL, params, &resp); err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return &resp, nil
}

func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	token, err := c.requestToken(ctx, url.Values{"command": {"request"}})
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

// resetToken asks for a reset of an exhausted token, or a fresh one when the
// source no longer knows it.
func (c *Client) resetToken(ctx context.Context, old string, code int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	params := url.Values{"command": {"request"}}
	if code == CodeTokenEmpty && old != "" {
		params = url.Values{"command": {"reset"}, "token": {old}}
	}
	token, err := c.requestToken(ctx, params)
	if err != nil {
		return "", err
	}
	if token == "" {
		token = old
	}
	c.token = token
	return token, nil
}

func (c *Client) requestToken(ctx context.Context, params url.Values) (string, error) {
	var resp tokenResponse
	if err := c.getJSON(ctx, c.tokenURL, params, &resp); err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	if resp.ResponseCode != CodeSuccess {
		return "", &APIError{Code: resp.ResponseCode}
	}
	return resp.Token, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimit
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decode(q Question) Question {
	q.Category = html.UnescapeString(q.Category)
	q.Question = html.UnescapeString(q.Question)
	q.CorrectAnswer = html.UnescapeString(q.CorrectAnswer)
	incorrect := make([]string, 0, len(q.IncorrectAnswers))
	for _, a := range q.IncorrectAnswers {
		incorrect = append(incorrect, html.UnescapeString(a))
	}
	q.IncorrectAnswers = incorrect
	return q
}

// questionNamespace scopes the name-based ids derived by ExternalID.
var questionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("trivia/questions"))

// ExternalID derives a stable identity for a question, since the source
// does not assign one.
func ExternalID(q Question) string {
	return uuid.NewSHA1(questionNamespace, []byte(q.Category+"\x00"+q.Question+"\x00"+q.CorrectAnswer)).String()
}
