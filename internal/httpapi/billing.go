package httpapi

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"coachboard/internal/apperrors"
	"coachboard/internal/database"
	"coachboard/internal/logging"
)

const stripeSignatureHeader = "Stripe-Signature"

type checkoutRequest struct {
	Plan database.SubscriptionStatus `json:"plan"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	view, err := s.services.Billing.GetSubscription(r.Context(), profile.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	var req checkoutRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.services.Billing.CreateCheckout(r.Context(), profile.ID, req.Plan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{URL: url})
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request, profile *database.Profile) {
	url, err := s.services.Billing.CreatePortal(r.Context(), profile.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{URL: url})
}

// handleWebhook verifies and applies a payment processor event. A bad
// signature is a 400 so the processor does not treat it as an auth issue.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeErrorStatus(w, r, http.StatusBadRequest, errors.New("read body"))
		return
	}

	err = s.services.Billing.HandleWebhook(r.Context(), payload, r.Header.Get(stripeSignatureHeader))
	if errors.Is(err, apperrors.ErrUnauthorized) {
		logging.FromContext(r.Context(), s.logger).Warn("webhook rejected", zap.Error(err))
		s.writeErrorStatus(w, r, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
