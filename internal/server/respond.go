package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/campaign"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/outreach"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func okJSON(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func errorWithCode(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Code: code, Message: message})
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrEmptyCampaign),
		errors.Is(err, campaign.ErrInvalidDelay),
		errors.Is(err, campaign.ErrInvalidURL),
		errors.Is(err, outreach.ErrEmptyName):
		errorWithCode(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, outreach.ErrNoClient),
		errors.Is(err, outreach.ErrTemplateIndex),
		errors.Is(err, outreach.ErrLogIndex):
		errorWithCode(w, http.StatusNotFound, err.Error())
	default:
		errorWithCode(w, http.StatusInternalServerError, err.Error())
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func pathInt(r *http.Request, name string) (int, error) {
	v := chi.URLParam(r, name)
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, v)
	}
	return i, nil
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}
