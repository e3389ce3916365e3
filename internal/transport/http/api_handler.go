package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"songquiz-service/internal/app"
	"songquiz-service/internal/domain"
	"songquiz-service/internal/resolver"
)

const defaultScoresLimit = 10

// APIHandler serves the request/response endpoints used by browser quiz pages
// that run their own countdown.
type APIHandler struct {
	service         *app.QuizService
	questions       app.QuestionSource
	validator       resolver.Validator
	defaultPlaylist string
	logger          *slog.Logger
}

func NewAPIHandler(service *app.QuizService, questions app.QuestionSource, validator resolver.Validator, defaultPlaylist string, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{
		service:         service,
		questions:       questions,
		validator:       validator,
		defaultPlaylist: defaultPlaylist,
		logger:          logger,
	}
}

type fetchRequest struct {
	PlaylistID string `json:"playlistID"`
}

type fetchResponse struct {
	SetID     string            `json:"set_id"`
	Questions []domain.Question `json:"questions"`
}

type validateRequest struct {
	QuestionID     string        `json:"question_id"`
	SelectedOption domain.Option `json:"selected_option"`
}

type validateResponse struct {
	IsCorrect bool `json:"is_correct"`
}

type scoresResponse struct {
	Scores []domain.ScoreEntry `json:"scores"`
}

// FetchQuestions generates a question set for a playlist.
func (h *APIHandler) FetchQuestions(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.PlaylistID == "" {
		req.PlaylistID = h.defaultPlaylist
	}
	if req.PlaylistID == "" {
		writeError(w, http.StatusBadRequest, "playlistID is required")
		return
	}

	set, err := h.questions.LoadQuestions(r.Context(), req.PlaylistID)
	switch {
	case errors.Is(err, domain.ErrPlaylistNotFound):
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	case errors.Is(err, domain.ErrNotEnoughTracks):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("fetch questions", "playlist", req.PlaylistID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not generate questions")
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse{SetID: set.ID, Questions: set.Questions})
}

// ValidateAnswer checks a selection against the stored answer key.
func (h *APIHandler) ValidateAnswer(w http.ResponseWriter, r *http.Request) {
	if h.validator == nil {
		writeError(w, http.StatusNotImplemented, "answer validation is not configured")
		return
	}
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "question_id and selected_option are required")
		return
	}

	correct, err := h.validator.Validate(r.Context(), req.QuestionID, req.SelectedOption)
	switch {
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeError(w, http.StatusNotFound, "question not found")
		return
	case err != nil:
		h.logger.Error("validate answer", "question", req.QuestionID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not validate answer")
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{IsCorrect: correct})
}

// Scores lists the best completed sessions of a playlist.
func (h *APIHandler) Scores(w http.ResponseWriter, r *http.Request) {
	playlistID := r.URL.Query().Get("playlistId")
	if playlistID == "" {
		playlistID = h.defaultPlaylist
	}
	limit, err := parseLimit(r, defaultScoresLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scores, err := h.service.Scores(r.Context(), playlistID, limit)
	if err != nil {
		h.logger.Error("load scores", "playlist", playlistID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load scores")
		return
	}
	if scores == nil {
		scores = []domain.ScoreEntry{}
	}
	writeJSON(w, http.StatusOK, scoresResponse{Scores: scores})
}

func (h *APIHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}
