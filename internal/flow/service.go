// Package flow implements the session-gated OTP verification and chat flow.
//
// The controller moves a session through
//
//	unauthenticated -> awaiting_otp -> awaiting_domain_input ->
//	domain_suggested -> chatting
//
// enforcing preconditions on each transition and mediating between the
// repository, the mailer, and the completion client. Failures never mutate
// session state.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/namewise/internal/domain"
	"github.com/ashureev/namewise/internal/llm"
	"github.com/ashureev/namewise/internal/mailer"
	"github.com/ashureev/namewise/internal/session"
	"github.com/ashureev/namewise/internal/store"
)

const (
	otpMailSubject   = "Your OTP Code"
	otpMailBody      = "Your OTP code is: %s. It is valid for 1 minute."
	otpResendBody    = "Your OTP code is: %s. It is still valid for 1 minute."
	suggestionPrompt = "You are an assistant that provides 10 creative domain name suggestions based on the input domain."
	suggestionQuery  = "Provide 10 domain name suggestions related to: %s"
)

// Service orchestrates the OTP and conversation flow for one deployment.
type Service struct {
	repo   store.Repository
	mail   mailer.Mailer
	llm    llm.Client
	otpTTL time.Duration
}

// New creates a flow service. otpTTL is the wall-clock lifetime of issued
// codes.
func New(repo store.Repository, mail mailer.Mailer, client llm.Client, otpTTL time.Duration) *Service {
	return &Service{
		repo:   repo,
		mail:   mail,
		llm:    client,
		otpTTL: otpTTL,
	}
}

// CheckEmail looks up the email in the user records, issues a fresh OTP
// (overwriting any outstanding record), mails it, and binds the email to the
// session. Re-binding resets verification and discards prior conversation.
func (s *Service) CheckEmail(ctx context.Context, sess *session.Session, email string) error {
	sess.Lock()
	defer sess.Unlock()

	if email == "" {
		return ErrBadRequest
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		slog.Error("check-email: user lookup failed", "email", email, "error", err)
		return fmt.Errorf("%w: find user: %v", ErrUpstream, err)
	}
	if user == nil {
		return ErrNotFound
	}

	code, err := generateOTP()
	if err != nil {
		slog.Error("check-email: otp generation failed", "error", err)
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	rec := &domain.OTPRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(s.otpTTL),
	}
	if err := s.repo.UpsertOTP(ctx, rec); err != nil {
		slog.Error("check-email: failed to save otp record", "email", email, "error", err)
		return fmt.Errorf("%w: save otp: %v", ErrUpstream, err)
	}

	if err := s.mail.Send(ctx, email, otpMailSubject, fmt.Sprintf(otpMailBody, code)); err != nil {
		slog.Error("check-email: failed to send otp mail", "email", email, "error", err)
		return fmt.Errorf("%w: send otp: %v", ErrUpstream, err)
	}

	sess.BindEmail(email)
	slog.Info("OTP issued", "email", email, "expires_at", rec.ExpiresAt)
	return nil
}

// ResendOTP re-sends the outstanding code for the session's email if it has
// not expired, or issues a fresh one otherwise. Flow state is unchanged
// either way. Returns true when a fresh code was generated.
func (s *Service) ResendOTP(ctx context.Context, sess *session.Session) (fresh bool, err error) {
	sess.Lock()
	defer sess.Unlock()

	email := sess.Email()
	if email == "" {
		return false, ErrBadRequest
	}

	rec, err := s.repo.GetOTP(ctx, email)
	if err != nil {
		slog.Error("resend-otp: otp lookup failed", "email", email, "error", err)
		return false, fmt.Errorf("%w: get otp: %v", ErrUpstream, err)
	}

	if rec != nil {
		// Unexpired record: re-send the same code, expiry untouched.
		if err := s.mail.Send(ctx, email, otpMailSubject, fmt.Sprintf(otpResendBody, rec.Code)); err != nil {
			slog.Error("resend-otp: failed to send otp mail", "email", email, "error", err)
			return false, fmt.Errorf("%w: send otp: %v", ErrUpstream, err)
		}
		slog.Info("OTP resent", "email", email, "expires_at", rec.ExpiresAt)
		return false, nil
	}

	code, err := generateOTP()
	if err != nil {
		slog.Error("resend-otp: otp generation failed", "error", err)
		return false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	rec = &domain.OTPRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(s.otpTTL),
	}
	if err := s.repo.UpsertOTP(ctx, rec); err != nil {
		slog.Error("resend-otp: failed to save otp record", "email", email, "error", err)
		return false, fmt.Errorf("%w: save otp: %v", ErrUpstream, err)
	}

	if err := s.mail.Send(ctx, email, otpMailSubject, fmt.Sprintf(otpMailBody, code)); err != nil {
		slog.Error("resend-otp: failed to send otp mail", "email", email, "error", err)
		return false, fmt.Errorf("%w: send otp: %v", ErrUpstream, err)
	}

	slog.Info("Fresh OTP issued on resend", "email", email, "expires_at", rec.ExpiresAt)
	return true, nil
}

// VerifyOTP checks the supplied code against the session email's outstanding
// record. A match marks the session verified and consumes the record: a
// repeated verify with the same code fails with ErrNotFound.
func (s *Service) VerifyOTP(ctx context.Context, sess *session.Session, otp string) error {
	sess.Lock()
	defer sess.Unlock()

	email := sess.Email()
	if email == "" || otp == "" {
		return ErrBadRequest
	}

	rec, err := s.repo.GetOTP(ctx, email)
	if err != nil {
		slog.Error("verify-otp: otp lookup failed", "email", email, "error", err)
		return fmt.Errorf("%w: get otp: %v", ErrUpstream, err)
	}
	if rec == nil {
		return ErrNotFound
	}

	if !otpEqual(otp, rec.Code) {
		return ErrInvalidCode
	}

	// Single-use: consume the record before reporting success. A delete
	// failure is logged but does not fail the verification; the record
	// expires on its own within the OTP TTL.
	if err := s.repo.DeleteOTP(ctx, email); err != nil {
		slog.Warn("verify-otp: failed to delete consumed otp record", "email", email, "error", err)
	}

	sess.MarkVerified()
	slog.Info("OTP verified", "email", email)
	return nil
}

// DomainSuggestions asks the completion service for domain name suggestions,
// appending the exchange to the session history. The reply is split on line
// breaks into individual suggestions; no fixed count is enforced even though
// the model is asked for ten.
func (s *Service) DomainSuggestions(ctx context.Context, sess *session.Session, domainName string) ([]string, error) {
	sess.Lock()
	defer sess.Unlock()

	if !sess.Verified() {
		return nil, ErrUnauthorized
	}
	switch sess.Flow() {
	case domain.StateAwaitingDomain, domain.StateDomainSuggested, domain.StateChatting:
	default:
		return nil, ErrInvalidState
	}
	if domainName == "" {
		return nil, ErrBadRequest
	}

	var turns []domain.Message
	if len(sess.History()) == 0 {
		turns = append(turns, domain.Message{Role: domain.RoleSystem, Content: suggestionPrompt})
	}
	turns = append(turns, domain.Message{
		Role:    domain.RoleUser,
		Content: fmt.Sprintf(suggestionQuery, domainName),
	})

	reply, err := s.llm.Complete(ctx, append(append([]domain.Message{}, sess.History()...), turns...))
	if err != nil {
		slog.Error("domain-suggestions: completion failed", "domain", domainName, "error", err)
		return nil, fmt.Errorf("%w: complete: %v", ErrUpstream, err)
	}

	suggestions := parseSuggestions(reply)
	if len(suggestions) == 0 {
		return nil, ErrNotFound
	}

	sess.Append(turns...)
	sess.Append(domain.Message{Role: domain.RoleAssistant, Content: strings.Join(suggestions, "\n")})
	sess.SetDomain(domainName)
	sess.SetFlow(domain.StateDomainSuggested)

	return suggestions, nil
}

// Chat sends a free-form query to the completion service with the session's
// full accumulated history, appending both turns on success.
func (s *Service) Chat(ctx context.Context, sess *session.Session, query string) (string, error) {
	sess.Lock()
	defer sess.Unlock()

	if !sess.Verified() {
		return "", ErrUnauthorized
	}
	if query == "" {
		return "", ErrBadRequest
	}
	switch sess.Flow() {
	case domain.StateDomainSuggested, domain.StateChatting:
	default:
		return "", ErrInvalidState
	}

	turn := domain.Message{Role: domain.RoleUser, Content: query}
	reply, err := s.llm.Complete(ctx, append(append([]domain.Message{}, sess.History()...), turn))
	if err != nil {
		slog.Error("chat: completion failed", "error", err)
		return "", fmt.Errorf("%w: complete: %v", ErrUpstream, err)
	}

	sess.Append(turn, domain.Message{Role: domain.RoleAssistant, Content: reply})
	sess.SetFlow(domain.StateChatting)

	return reply, nil
}

// parseSuggestions splits completion text on line breaks, trims whitespace,
// and drops empty lines.
func parseSuggestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
