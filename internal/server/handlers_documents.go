package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/streekit/streekeeper/internal/visualizer"
	"github.com/streekit/streekeeper/pkg/types"
)

// DocumentRequest names the file a dependent-feature request targets.
// Relative paths are resolved against the workspace.
type DocumentRequest struct {
	Path string `json:"path"`
}

// visualizeFile returns the syntax tree rendering of a file.
func (s *Server) visualizeFile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDocumentRequest(w, r)
	if !ok {
		return
	}

	tree, err := s.viz.Visualize(r.Context(), req.Path)
	if err != nil {
		writeFeatureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.VisualizeResult{Path: req.Path, Tree: tree})
}

// formatFile returns a formatting preview diff for a file.
func (s *Server) formatFile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDocumentRequest(w, r)
	if !ok {
		return
	}

	diff, err := s.viz.FormatPreview(r.Context(), req.Path)
	if err != nil {
		writeFeatureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FormatResult{
		Path:    req.Path,
		Changed: diff != "",
		Diff:    diff,
	})
}

func decodeDocumentRequest(w http.ResponseWriter, r *http.Request) (DocumentRequest, bool) {
	var req DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return req, false
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "path required")
		return req, false
	}
	return req, true
}

// writeFeatureError maps dependent-feature failures onto API errors.
func writeFeatureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, visualizer.ErrNotRunning):
		writeError(w, http.StatusConflict, ErrCodeServerNotRunning, err.Error())
	case errors.Is(err, visualizer.ErrExcluded):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	}
}
