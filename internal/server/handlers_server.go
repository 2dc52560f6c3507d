package server

import (
	"net/http"
	"strconv"

	"github.com/streekit/streekeeper/internal/logging"
	"github.com/streekit/streekeeper/pkg/types"
)

// defaultLogLines is how many lines GET /logs returns when n is absent.
const defaultLogLines = 100

// health reports liveness.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus reports the supervisor status.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sup.Status())
}

// startServer launches the language server unless it is already up.
func (s *Server) startServer(w http.ResponseWriter, r *http.Request) {
	if err := s.sup.Start(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sup.Status())
}

// stopServer shuts the language server down.
func (s *Server) stopServer(w http.ResponseWriter, r *http.Request) {
	if err := s.sup.Stop(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sup.Status())
}

// restartServer stops and relaunches the language server.
func (s *Server) restartServer(w http.ResponseWriter, r *http.Request) {
	if err := s.sup.Restart(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sup.Status())
}

// getLogs returns the most recent diagnostics log lines. n=0 returns
// everything retained.
func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	n := defaultLogLines
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "n must be a non-negative integer")
			return
		}
		n = parsed
	}

	lines := logging.Recent(n)
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, types.LogsResult{Lines: lines})
}
