package httpapi

import (
	"net/http"

	"coachboard/internal/database"
	"coachboard/internal/services"
)

type reorderRequest struct {
	StepIDs []string `json:"step_ids"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	goals, err := s.services.Goals.ListGoals(r.Context(), profile.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if goals == nil {
		goals = []database.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req services.GoalInput
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	goal, err := s.services.Goals.CreateGoal(r.Context(), profile.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	goal, err := s.services.Goals.GetGoal(r.Context(), profile.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req services.GoalUpdate
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	goal, err := s.services.Goals.UpdateGoal(r.Context(), profile.ID, r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	if err := s.services.Goals.DeleteGoal(r.Context(), profile.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddStep(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req services.StepInput
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	step, err := s.services.Goals.AddStep(r.Context(), profile.ID, r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

func (s *Server) handleReorderSteps(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req reorderRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	goal, err := s.services.Goals.ReorderSteps(r.Context(), profile.ID, r.PathValue("id"), req.StepIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleUpdateStep(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req services.StepUpdate
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	step, err := s.services.Goals.UpdateStep(r.Context(), profile.ID, r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleDeleteStep(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	if err := s.services.Goals.DeleteStep(r.Context(), profile.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
