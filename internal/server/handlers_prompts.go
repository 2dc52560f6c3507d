package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/streekit/streekeeper/internal/prompt"
	"github.com/streekit/streekeeper/pkg/types"
)

// PromptAnswer is the operator's response to a recovery prompt. An
// empty or omitted action dismisses the prompt.
type PromptAnswer struct {
	Action string `json:"action"`
}

// listPrompts returns the prompts waiting for an operator choice.
func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	if s.prompts == nil {
		writeJSON(w, http.StatusOK, []types.PromptInfo{})
		return
	}
	writeJSON(w, http.StatusOK, s.prompts.Pending())
}

// resolvePrompt answers one pending prompt.
func (s *Server) resolvePrompt(w http.ResponseWriter, r *http.Request) {
	if s.prompts == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "prompts are answered on the daemon terminal")
		return
	}

	promptID := chi.URLParam(r, "promptID")

	// An empty body dismisses, same as an empty action.
	var answer PromptAnswer
	if err := json.NewDecoder(r.Body).Decode(&answer); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	switch err := s.prompts.Resolve(promptID, answer.Action); {
	case errors.Is(err, prompt.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, prompt.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, prompt.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	default:
		writeSuccess(w)
	}
}
