package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"songquiz-service/internal/app"
	"songquiz-service/internal/domain"
	"songquiz-service/internal/infra/memory"
	"songquiz-service/internal/questions"
)

func TestFetchAndValidateAnswer(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	resp := postJSON(t, server.URL+"/fetch_gamemode1", fetchRequest{PlaylistID: "top50"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var fetched fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode fetch: %v", err)
	}
	resp.Body.Close()
	if len(fetched.Questions) != questions.QuestionsPerSet || fetched.SetID == "" {
		t.Fatalf("unexpected fetch response %+v", fetched)
	}

	q := fetched.Questions[0]
	correctSeen := 0
	for _, opt := range q.Options {
		resp := postJSON(t, server.URL+"/validate_answer", validateRequest{QuestionID: q.ID, SelectedOption: opt})
		var validated validateResponse
		_ = json.NewDecoder(resp.Body).Decode(&validated)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if validated.IsCorrect {
			correctSeen++
			if q.Correct != nil && !q.Correct.Same(opt) {
				t.Fatalf("validator disagrees with the question's answer")
			}
		}
	}
	if correctSeen != 1 {
		t.Fatalf("expected exactly one correct option, got %d", correctSeen)
	}
}

func TestFetchErrors(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	resp := postJSON(t, server.URL+"/fetch_gamemode1", fetchRequest{PlaylistID: "unknown"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	small := memory.NewPlaylistRepository(memory.NewStaticTrackLoader(map[string][]domain.Track{
		"tiny": testTracks(5),
	}), time.Minute)
	api := NewAPIHandler(nil, questions.NewGenerator(small), nil, "", nil)
	rec := httptest.NewRecorder()
	api.FetchQuestions(rec, httptest.NewRequest(http.MethodPost, "/fetch_gamemode1", bytes.NewReader([]byte(`{"playlistID":"tiny"}`))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a small playlist, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	api.FetchQuestions(rec, httptest.NewRequest(http.MethodPost, "/fetch_gamemode1", bytes.NewReader([]byte(`{}`))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without playlist, got %d", rec.Code)
	}
}

func TestValidateUnknownQuestion(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	resp := postJSON(t, server.URL+"/validate_answer", validateRequest{QuestionID: "nope:1", SelectedOption: domain.Option{Name: "x", Artist: "y"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	api := NewAPIHandler(nil, nil, nil, "", nil)
	rec := httptest.NewRecorder()
	api.ValidateAnswer(rec, httptest.NewRequest(http.MethodPost, "/validate_answer", bytes.NewReader([]byte(`{}`))))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a validator, got %d", rec.Code)
	}
}

func TestGetScores(t *testing.T) {
	board := memory.NewScoreboard()
	_ = board.RecordScore(context.Background(), domain.ScoreEntry{SessionID: "s1", Selection: "top50", Score: 3})
	_ = board.RecordScore(context.Background(), domain.ScoreEntry{SessionID: "s2", Selection: "top50", Score: 5})
	service := app.NewQuizService(memory.NewSessionStore(), nil, nil, board, app.ServiceConfig{})
	api := NewAPIHandler(service, nil, nil, "top50", nil)

	rec := httptest.NewRecorder()
	api.Scores(rec, httptest.NewRequest(http.MethodGet, "/get_scores?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body scoresResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode scores: %v", err)
	}
	if len(body.Scores) != 1 || body.Scores[0].SessionID != "s2" {
		t.Fatalf("unexpected scores %+v", body.Scores)
	}

	rec = httptest.NewRecorder()
	api.Scores(rec, httptest.NewRequest(http.MethodGet, "/get_scores?playlistId=other", nil))
	if rec.Body.String() != "{\"scores\":[]}\n" {
		t.Fatalf("expected empty list, got %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	api.Scores(rec, httptest.NewRequest(http.MethodGet, "/get_scores?limit=many", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", rec.Code)
	}
}

func TestRouterCORSAndHealth(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodOptions, server.URL+"/fetch_gamemode1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS headers on preflight")
	}

	resp, err = http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}
