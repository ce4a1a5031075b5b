package api

import (
	"errors"
	"net/http"

	"dayplanner/internal/core"
	"dayplanner/internal/planner"

	"github.com/go-chi/chi/v5"
)

type sleepResponse struct {
	Date core.Date `json:"date"`
	core.SleepWindow
	// Override is false when the configured default applies.
	Override bool `json:"override"`
	Minutes  int  `json:"minutes"`
}

type occurrenceListResponse struct {
	Date        core.Date         `json:"date"`
	Occurrences []core.Occurrence `json:"occurrences"`
}

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request, name string) (core.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return s.planner.Today(), true
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", name+": "+err.Error())
		return core.Date{}, false
	}
	return d, true
}

func pathDate(w http.ResponseWriter, r *http.Request) (core.Date, bool) {
	d, err := core.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return core.Date{}, false
	}
	return d, true
}

// handleSchedule returns the ScheduleResult of one day. Infeasible days are
// still 200: the result carries the reason.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r, "date")
	if !ok {
		return
	}
	res, err := s.planner.ScheduleDay(r.Context(), date)
	if err != nil {
		s.writeDomainError(w, err, "compute schedule")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleScheduleRange(w http.ResponseWriter, r *http.Request) {
	from, ok := s.dateParam(w, r, "from")
	if !ok {
		return
	}
	to := from.AddDays(6)
	if r.URL.Query().Get("to") != "" {
		if to, ok = s.dateParam(w, r, "to"); !ok {
			return
		}
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "invalid_input", "to must not be before from")
		return
	}
	results, err := s.planner.ScheduleRange(r.Context(), from, to)
	if errors.Is(err, planner.ErrRangeTooLarge) {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if err != nil {
		s.writeDomainError(w, err, "compute schedule range")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r, "date")
	if !ok {
		return
	}
	occs, err := s.planner.Occurrences(r.Context(), date)
	if err != nil {
		s.writeDomainError(w, err, "expand occurrences")
		return
	}
	writeJSON(w, http.StatusOK, occurrenceListResponse{Date: date, Occurrences: occs})
}

func (s *Server) handleGetSleep(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	win, override, err := s.planner.SleepWindow(r.Context(), date)
	if err != nil {
		s.writeDomainError(w, err, "load sleep window")
		return
	}
	writeJSON(w, http.StatusOK, sleepResponse{Date: date, SleepWindow: win, Override: override, Minutes: win.Minutes()})
}

func (s *Server) handlePutSleep(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	var win core.SleepWindow
	if err := decodeJSON(r, &win); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := s.catalog.SetSleepWindow(r.Context(), date, win); err != nil {
		s.writeDomainError(w, err, "store sleep window")
		return
	}
	writeJSON(w, http.StatusOK, sleepResponse{Date: date, SleepWindow: win, Override: true, Minutes: win.Minutes()})
}

func (s *Server) handleDeleteSleep(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	if err := s.catalog.ClearSleepWindow(r.Context(), date); err != nil {
		s.writeDomainError(w, err, "delete sleep window")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
