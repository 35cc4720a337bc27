// Package api provides HTTP handlers for the Namewise API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashureev/namewise/internal/flow"
	"github.com/ashureev/namewise/internal/session"
	"github.com/go-chi/chi/v5"
)

// maxRequestBodySize caps accepted request bodies (1MB).
const maxRequestBodySize = 1 << 20

// Handler serves the flow endpoints.
type Handler struct {
	flow *flow.Service
}

// NewHandler creates a new Handler around the flow service.
func NewHandler(svc *flow.Service) *Handler {
	return &Handler{flow: svc}
}

// Response is the common JSON envelope for all flow endpoints.
type Response struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Answer      string   `json:"answer,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"success":false,"message":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Fail writes a JSON failure envelope.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Response{Success: false, Message: message})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Fail(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

type checkEmailRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	OTP string `json:"otp"`
}

type domainSuggestionsRequest struct {
	Domain string `json:"domain"`
}

type chatRequest struct {
	Query string `json:"query"`
}

// HandleCheckEmail issues an OTP for a known email and binds it to the session.
func (h *Handler) HandleCheckEmail(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	var req checkEmailRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		Fail(w, http.StatusBadRequest, "Email is required.")
		return
	}

	if err := h.flow.CheckEmail(r.Context(), sess, req.Email); err != nil {
		switch {
		case errors.Is(err, flow.ErrBadRequest):
			Fail(w, http.StatusBadRequest, "Email is required.")
		case errors.Is(err, flow.ErrNotFound):
			Fail(w, http.StatusNotFound, "Email not found in our records.")
		default:
			Fail(w, http.StatusInternalServerError, "Failed to send OTP.")
		}
		return
	}

	JSON(w, http.StatusOK, Response{Success: true, Message: "OTP sent to your email address."})
}

// HandleResendOTP re-sends the outstanding OTP for the session's email, or a
// fresh one if the outstanding code expired. The session-bound email is
// authoritative; any email in the request body is ignored.
func (h *Handler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	fresh, err := h.flow.ResendOTP(r.Context(), sess)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrBadRequest):
			Fail(w, http.StatusBadRequest, "Email is required.")
		default:
			Fail(w, http.StatusInternalServerError, "Failed to send OTP.")
		}
		return
	}

	message := "OTP resent to your email address."
	if fresh {
		message = "New OTP sent to your email address."
	}
	JSON(w, http.StatusOK, Response{Success: true, Message: message})
}

// HandleVerifyOTP checks the supplied code against the session email's record.
func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	var req verifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OTP == "" {
		Fail(w, http.StatusBadRequest, "Email and OTP are required.")
		return
	}

	if err := h.flow.VerifyOTP(r.Context(), sess, req.OTP); err != nil {
		switch {
		case errors.Is(err, flow.ErrBadRequest):
			Fail(w, http.StatusBadRequest, "Email and OTP are required.")
		case errors.Is(err, flow.ErrNotFound):
			Fail(w, http.StatusNotFound, "OTP not found or expired.")
		case errors.Is(err, flow.ErrInvalidCode):
			Fail(w, http.StatusBadRequest, "Invalid OTP.")
		default:
			Fail(w, http.StatusInternalServerError, "Internal server error.")
		}
		return
	}

	JSON(w, http.StatusOK, Response{
		Success: true,
		Message: "OTP verified successfully. Please provide a domain name for suggestions.",
	})
}

// HandleDomainSuggestions returns model-generated domain name suggestions.
func (h *Handler) HandleDomainSuggestions(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	var req domainSuggestionsRequest
	if !decode(w, r, &req) {
		return
	}

	suggestions, err := h.flow.DomainSuggestions(r.Context(), sess, req.Domain)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrUnauthorized):
			Fail(w, http.StatusUnauthorized, "Session expired. Please log in again.")
		case errors.Is(err, flow.ErrInvalidState):
			Fail(w, http.StatusBadRequest, "Please verify your email first.")
		case errors.Is(err, flow.ErrBadRequest):
			Fail(w, http.StatusBadRequest, "Domain is required.")
		case errors.Is(err, flow.ErrNotFound):
			Fail(w, http.StatusNotFound, "No suggestions found for the given domain.")
		default:
			Fail(w, http.StatusInternalServerError, "Error generating suggestions.")
		}
		return
	}

	JSON(w, http.StatusOK, Response{
		Success:     true,
		Suggestions: suggestions,
		Message:     "Domain suggestions provided. Now you can ask anything!",
	})
}

// HandleChat answers a free-form query with the session's full history.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	var req chatRequest
	if !decode(w, r, &req) {
		return
	}

	answer, err := h.flow.Chat(r.Context(), sess, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrUnauthorized):
			Fail(w, http.StatusUnauthorized, "Session expired. Please log in again.")
		case errors.Is(err, flow.ErrBadRequest):
			Fail(w, http.StatusBadRequest, "Query is required.")
		case errors.Is(err, flow.ErrInvalidState):
			Fail(w, http.StatusBadRequest, "Please get domain suggestions first.")
		default:
			Fail(w, http.StatusInternalServerError, "Failed to process your question.")
		}
		return
	}

	JSON(w, http.StatusOK, Response{Success: true, Answer: answer})
}

// RegisterRoutes registers the flow endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/check-email", h.HandleCheckEmail)
		r.Post("/resend-otp", h.HandleResendOTP)
		r.Post("/verify-otp", h.HandleVerifyOTP)
		r.Post("/domain-suggestions", h.HandleDomainSuggestions)
		r.Post("/chat", h.HandleChat)
	})
}
