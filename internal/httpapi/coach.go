package httpapi

import (
	"net/http"
	"strconv"

	"coachboard/internal/database"
)

type startConversationRequest struct {
	Flow string `json:"flow"`
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req startConversationRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.services.Coach.StartConversation(r.Context(), profile.ID, req.Flow)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	view, err := s.services.Coach.GetConversation(r.Context(), profile.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCoachReply(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req textRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.services.Coach.Reply(r.Context(), profile.ID, r.PathValue("id"), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleDraftGoal(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	goal, err := s.services.Coach.DraftGoal(r.Context(), profile.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req textRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	audio, err := s.services.Voice.Synthesize(r.Context(), profile.ID, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}
