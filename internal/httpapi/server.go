package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"coachboard/internal/services"
)

type Server struct {
	services      *services.ServiceManager
	logger        *zap.Logger
	allowedOrigin string
	now           func() time.Time
}

// NewServer builds the JSON API handler with its middleware chain.
func NewServer(sm *services.ServiceManager, logger *zap.Logger, allowedOrigin string) http.Handler {
	s := &Server{
		services:      sm,
		logger:        logger,
		allowedOrigin: allowedOrigin,
		now:           func() time.Time { return time.Now().UTC() },
	}
	return s.handler()
}

func (s *Server) handler() http.Handler {
	return chainMiddlewares(s.routes(),
		s.withRecovery,
		s.withLogging,
		s.withCORS,
		s.withRequestID,
	)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("POST /auth/password/forgot", s.handleForgotPassword)
	mux.HandleFunc("POST /auth/password/reset", s.handleResetPassword)

	mux.Handle("GET /me", s.authed(s.handleGetMe))
	mux.Handle("PATCH /me", s.authed(s.handleUpdateMe))

	mux.Handle("GET /goals", s.authed(s.handleListGoals))
	mux.Handle("POST /goals", s.authed(s.handleCreateGoal))
	mux.Handle("GET /goals/{id}", s.authed(s.handleGetGoal))
	mux.Handle("PATCH /goals/{id}", s.authed(s.handleUpdateGoal))
	mux.Handle("DELETE /goals/{id}", s.authed(s.handleDeleteGoal))
	mux.Handle("POST /goals/{id}/steps", s.authed(s.handleAddStep))
	mux.Handle("PUT /goals/{id}/steps/order", s.authed(s.handleReorderSteps))
	mux.Handle("PATCH /steps/{id}", s.authed(s.handleUpdateStep))
	mux.Handle("DELETE /steps/{id}", s.authed(s.handleDeleteStep))

	mux.Handle("GET /sessions", s.authed(s.handleListSessions))
	mux.Handle("POST /sessions", s.authed(s.handleLogSession))
	mux.Handle("GET /sessions/{id}", s.authed(s.handleGetSession))
	mux.Handle("GET /insights", s.authed(s.handleListInsights))

	mux.Handle("GET /tasks", s.authed(s.handleListTasks))
	mux.Handle("POST /tasks", s.authed(s.handleAddTask))
	mux.Handle("PATCH /tasks/{id}", s.authed(s.handleUpdateTask))
	mux.Handle("DELETE /tasks/{id}", s.authed(s.handleDeleteTask))
	mux.Handle("POST /tasks/{id}/toggle", s.authed(s.handleToggleTask))
	mux.Handle("POST /tasks/{id}/snooze", s.authed(s.handleSnoozeTask))

	mux.Handle("GET /dashboard/overview", s.authed(s.handleOverview))
	mux.Handle("GET /dashboard/progress", s.authed(s.handleProgress))
	mux.Handle("GET /dashboard/weekly", s.authed(s.handleWeekly))
	mux.Handle("GET /dashboard/calendar", s.authed(s.handleCalendar))

	mux.Handle("GET /subscription", s.authed(s.handleGetSubscription))
	mux.Handle("POST /billing/checkout", s.authed(s.handleCheckout))
	mux.Handle("POST /billing/portal", s.authed(s.handlePortal))
	mux.HandleFunc("POST /billing/webhook", s.handleWebhook)

	mux.Handle("POST /coach/conversations", s.authed(s.handleStartConversation))
	mux.Handle("GET /coach/conversations/{id}", s.authed(s.handleGetConversation))
	mux.Handle("POST /coach/conversations/{id}/messages", s.authed(s.handleCoachReply))
	mux.Handle("POST /coach/conversations/{id}/goal", s.authed(s.handleDraftGoal))

	mux.Handle("POST /voice/speech", s.authed(s.handleSpeech))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
