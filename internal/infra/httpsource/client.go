// Package httpsource talks to a quiz backend that serves question sets and
// validates answers over HTTP.
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"songquiz-service/internal/domain"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("quiz backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("quiz backend returned status %d: %s", e.StatusCode, e.Message)
}

type fetchRequest struct {
	PlaylistID string `json:"playlistID"`
}

type fetchResponse struct {
	SetID     string         `json:"set_id"`
	Questions []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	ID         wireID          `json:"question_id"`
	PreviewURL string          `json:"audio_preview_url"`
	Options    []domain.Option `json:"options"`
	Correct    *domain.Option  `json:"correct_option,omitempty"`
}

type validateRequest struct {
	QuestionID     wireID        `json:"question_id"`
	SelectedOption domain.Option `json:"selected_option"`
}

// wireID is a question identifier that some backends send as a JSON number
// and expect back in the same form.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question_id: %w", err)
	}
	*id = wireID(n.String())
	return nil
}

func (id wireID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(string(id))
}

type validateResponse struct {
	IsCorrect bool `json:"is_correct"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Client implements app.QuestionSource and resolver.Validator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// LoadQuestions fetches a question set for a playlist.
func (c *Client) LoadQuestions(ctx context.Context, playlistID string) (domain.QuestionSet, error) {
	var payload fetchResponse
	if err := c.post(ctx, "/fetch_gamemode1", fetchRequest{PlaylistID: playlistID}, &payload); err != nil {
		return domain.QuestionSet{}, err
	}
	if len(payload.Questions) == 0 {
		return domain.QuestionSet{}, domain.ErrEmptyQuestionSet
	}
	questions := make([]domain.Question, len(payload.Questions))
	for i, q := range payload.Questions {
		questions[i] = domain.Question{
			ID:         string(q.ID),
			PreviewURL: q.PreviewURL,
			Options:    q.Options,
			Correct:    q.Correct,
		}
	}

	setID := payload.SetID
	if setID == "" {
		setID, _ = domain.SetIDOf(questions[0].ID)
	}
	if setID == "" {
		setID = uuid.NewString()
	}
	return domain.QuestionSet{ID: setID, Selection: playlistID, Questions: questions}, nil
}

// Validate asks the backend whether selected answers questionID.
func (c *Client) Validate(ctx context.Context, questionID string, selected domain.Option) (bool, error) {
	var payload validateResponse
	err := c.post(ctx, "/validate_answer", validateRequest{QuestionID: wireID(questionID), SelectedOption: selected}, &payload)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return false, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	if err != nil {
		return false, err
	}
	return payload.IsCorrect, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var detail errorResponse
		if json.Unmarshal(data, &detail) == nil {
			apiErr.Message = detail.Detail
			if apiErr.Message == "" {
				apiErr.Message = detail.Error
			}
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
