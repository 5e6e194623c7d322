package httpapi

import (
	"errors"
	"net/http"

	"coachboard/internal/apperrors"
	"coachboard/internal/database"
	"coachboard/internal/services"
	"coachboard/internal/utils"
)

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

func (s *Server) handleLogSession(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req services.SessionInput
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.services.Sessions.LogSession(r.Context(), profile.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	sessions, err := s.services.Sessions.ListSessions(r.Context(), database.SessionFilter{
		ProfileID: profile.ID,
		GoalID:    q.Get("goal_id"),
		StepID:    q.Get("step_id"),
		Limit:     limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []database.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

type sessionResponse struct {
	Session *database.Session `json:"session"`
	Insight *database.Insight `json:"insight,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	id := r.PathValue("id")
	session, err := s.services.Sessions.GetSession(r.Context(), profile.ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := sessionResponse{Session: session}
	insight, err := s.services.Sessions.GetInsight(r.Context(), profile.ID, id)
	switch {
	case err == nil:
		resp.Insight = insight
	case !errors.Is(err, apperrors.ErrNotFound):
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	insights, err := s.services.Sessions.ListInsights(r.Context(), profile.ID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if insights == nil {
		insights = []database.Insight{}
	}
	writeJSON(w, http.StatusOK, insights)
}

// handleListTasks serves one day (?date=) or a range (?from=&to=).
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	q := r.URL.Query()
	var (
		tasks []database.Task
		err   error
	)
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		tasks, err = s.services.Tasks.ListTasksBetween(r.Context(), profile.ID, from, to)
	} else {
		tasks, err = s.services.Tasks.ListTasks(r.Context(), profile.ID, q.Get("date"))
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []database.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req services.TaskInput
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.services.Tasks.AddTask(r.Context(), profile.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req services.TaskUpdate
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.services.Tasks.UpdateTask(r.Context(), profile.ID, r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	if err := s.services.Tasks.DeleteTask(r.Context(), profile.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	task, err := s.services.Tasks.ToggleTask(r.Context(), profile.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleSnoozeTask(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req snoozeRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.services.Tasks.SnoozeTask(r.Context(), profile.ID, r.PathValue("id"), req.Minutes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	overview, err := s.services.Dashboard.Overview(r.Context(), profile.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// handleProgress defaults to the 30 days ending today.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	now := s.now()
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if to == "" {
		to = utils.DateKey(now)
	}
	if from == "" {
		end, err := utils.ParseDate(to)
		if err != nil {
			s.writeError(w, r, invalidParam("to"))
			return
		}
		from = utils.DateKey(end.AddDate(0, 0, -29))
	}

	days, err := s.services.Dashboard.DailyProgress(r.Context(), profile.ID, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	at := s.now()
	if date := r.URL.Query().Get("date"); date != "" {
		d, err := utils.ParseDate(date)
		if err != nil {
			s.writeError(w, r, invalidParam("date"))
			return
		}
		at = d
	}
	report, err := s.services.Dashboard.WeeklyReport(r.Context(), profile.ID, at)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	calendar, err := s.services.Dashboard.Calendar(r.Context(), profile.ID, r.URL.Query().Get("month"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calendar)
}
