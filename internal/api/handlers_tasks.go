package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"dayplanner/internal/catalog"
	"dayplanner/internal/core"
	"dayplanner/internal/recurrence"
	"dayplanner/internal/store"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type occurrencesResponse struct {
	TaskID string      `json:"taskId"`
	Dates  []core.Date `json:"dates"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	def := core.TaskDefinition{IsActive: true}
	if err := decodeJSON(r, &def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	catalog.ApplyDefaults(&def, s.planner.Today())

	if err := s.catalog.Create(r.Context(), &def); err != nil {
		s.writeDomainError(w, err, "create task")
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	defs, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err, "list tasks")
		return
	}
	if defs == nil {
		defs = []*core.TaskDefinition{}
	}
	if active := r.URL.Query().Get("active"); active != "" {
		want, err := strconv.ParseBool(active)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "active must be true or false")
			return
		}
		filtered := defs[:0]
		for _, d := range defs {
			if d.IsActive == want {
				filtered = append(filtered, d)
			}
		}
		defs = filtered
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	def, err := s.catalog.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeDomainError(w, err, "get task")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleUpdateTask applies a partial JSON document on top of the stored
// definition; fields absent from the body keep their value.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	def, err := s.catalog.Get(r.Context(), taskID)
	if err != nil {
		s.writeDomainError(w, err, "get task for update")
		return
	}
	if err := decodeJSON(r, def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if def.ID != taskID {
		writeError(w, http.StatusBadRequest, "invalid_input", "id cannot be changed")
		return
	}
	if err := s.catalog.Update(r.Context(), def); err != nil {
		s.writeDomainError(w, err, "update task")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "taskID")); err != nil {
		s.writeDomainError(w, err, "delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTaskOccurrences previews the next dates a definition lands on.
func (s *Server) handleTaskOccurrences(w http.ResponseWriter, r *http.Request) {
	def, err := s.catalog.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeDomainError(w, err, "get task for occurrences")
		return
	}
	from, ok := s.dateParam(w, r, "from")
	if !ok {
		return
	}
	count := parseIntDefault(r.URL.Query().Get("count"), 10)
	if count < 1 || count > 100 {
		writeError(w, http.StatusBadRequest, "invalid_input", "count must be between 1 and 100")
		return
	}
	writeJSON(w, http.StatusOK, occurrencesResponse{TaskID: def.ID, Dates: recurrence.NextDates(def, from, count)})
}

// writeDomainError maps catalog, validation and store errors to responses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, op string) {
	var (
		verr    core.ValidationError
		cycle   core.CycleError
		unknown core.UnknownDependencyError
		dup     catalog.DuplicateError
		deps    catalog.DependentsError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &cycle), errors.As(err, &unknown):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.As(err, &dup):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.As(err, &deps):
		writeError(w, http.StatusConflict, "has_dependents", err.Error())
	case errors.Is(err, store.ErrDefinitionNotFound):
		writeError(w, http.StatusNotFound, "not_found", "task not found")
	case errors.Is(err, store.ErrSleepWindowNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no sleep window stored for this date")
	default:
		s.logger.Error(op, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to "+op)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.New("failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid JSON payload: " + err.Error())
	}
	return nil
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
