package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/usecase/ask"
	"github.com/m-mizutani/bulletin/pkg/usecase/update"
	"github.com/m-mizutani/bulletin/pkg/utils/logging"
)

const (
	msgQuestionRequired = "Question is required"
	msgNotConfigured    = "Server configuration is incomplete."
	msgFetchFailed      = "Failed to fetch updates"
	msgInvalidBody      = "Invalid request body"
	msgSaveFailed       = "Failed to save update"
)

// maxBodySize bounds request bodies of the JSON endpoints
const maxBodySize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type addUpdateResponse struct {
	Update      *model.Update `json:"update"`
	SheetSynced bool          `json:"sheet_synced"`
	Warning     string        `json:"warning,omitempty"`
}

type listUpdatesResponse struct {
	Updates []*model.Update `json:"updates"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(r.Context()).Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())

	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}

	// Input errors win over configuration errors
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, http.StatusBadRequest, msgQuestionRequired)
		return
	}

	if s.asker == nil {
		writeError(w, r, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	answer, err := s.asker.Answer(r.Context(), req.Question, s.now())
	switch {
	case err == nil:
		s.metrics.observeAnswer(answer)
		writeJSON(w, r, http.StatusOK, askResponse{Answer: answer.Text})

	case errors.Is(err, ask.ErrQuestionRequired):
		writeError(w, r, http.StatusBadRequest, msgQuestionRequired)

	case errors.Is(err, ask.ErrNotConfigured):
		logger.Error("ask is not configured", "error", err)
		writeError(w, r, http.StatusInternalServerError, msgNotConfigured)

	default:
		logger.Error("failed to answer question", "error", err)
		writeError(w, r, http.StatusInternalServerError, msgFetchFailed)
	}
}

func (s *Server) handleAddUpdate(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())

	var input update.AddInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if s.updates == nil {
		writeError(w, r, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	result, err := s.updates.Add(r.Context(), input, s.now())
	if err != nil {
		var ve *update.ValidationError
		if errors.As(err, &ve) {
			writeError(w, r, http.StatusBadRequest, ve.Error())
			return
		}
		logger.Error("failed to add update", "error", err)
		writeError(w, r, http.StatusInternalServerError, msgSaveFailed)
		return
	}

	resp := addUpdateResponse{
		Update:      result.Update,
		SheetSynced: result.SheetSynced,
	}
	if result.SheetError != nil {
		resp.Warning = "Update saved but sheet sync failed"
	}
	writeJSON(w, r, http.StatusCreated, resp)
}

func (s *Server) handleListUpdates(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	if s.updates == nil {
		writeError(w, r, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	updates, err := s.updates.List(r.Context(), limit)
	if err != nil {
		logging.From(r.Context()).Error("failed to list updates", "error", err)
		writeError(w, r, http.StatusInternalServerError, msgFetchFailed)
		return
	}
	if updates == nil {
		updates = []*model.Update{}
	}
	writeJSON(w, r, http.StatusOK, listUpdatesResponse{Updates: updates})
}
