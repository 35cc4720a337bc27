package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/namewise/internal/domain"
	"github.com/ashureev/namewise/internal/flow"
	"github.com/ashureev/namewise/internal/session"
	"github.com/ashureev/namewise/internal/store"
	"github.com/go-chi/chi/v5"
)

type captureMailer struct {
	sent int
	fail bool
}

func (m *captureMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent++
	return nil
}

type scriptedLLM struct {
	replies []string
}

func (f *scriptedLLM) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	if len(f.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	repo   store.Repository
	mail   *captureMailer
	llm    *scriptedLLM
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "namewise.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := repo.Close(); closeErr != nil {
			t.Errorf("Close failed: %v", closeErr)
		}
	})

	if err := repo.SeedUsers(context.Background(), []string{"a@b.com"}); err != nil {
		t.Fatalf("SeedUsers failed: %v", err)
	}

	mail := &captureMailer{}
	client := &scriptedLLM{}
	handler := NewHandler(flow.New(repo, mail, client, 60*time.Second))

	r := chi.NewRouter()
	r.Use(session.Middleware(session.NewManager(30*time.Minute), true))
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New failed: %v", err)
	}

	return &testEnv{
		server: srv,
		client: &http.Client{Jar: jar},
		repo:   repo,
		mail:   mail,
		llm:    client,
	}
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) (int, Response) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	resp, err := e.client.Post(e.server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response from %s: %v", path, err)
	}
	return resp.StatusCode, out
}

// storedCode reads the outstanding OTP for an email straight from the store.
func (e *testEnv) storedCode(t *testing.T, email string) string {
	t.Helper()

	rec, err := e.repo.GetOTP(context.Background(), email)
	if err != nil {
		t.Fatalf("GetOTP failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected an outstanding OTP record")
	}
	return rec.Code
}

func TestCheckEmailMissingEmail(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.post(t, "/api/check-email", map[string]string{})
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", status)
	}
	if resp.Success || resp.Message != "Email is required." {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestCheckEmailUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.post(t, "/api/check-email", map[string]string{"email": "nobody@b.com"})
	if status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", status)
	}
	if resp.Success || resp.Message != "Email not found in our records." {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestCheckEmailMailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mail.fail = true

	status, resp := env.post(t, "/api/check-email", map[string]string{"email": "a@b.com"})
	if status != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", status)
	}
	if resp.Success {
		t.Errorf("Unexpected success: %+v", resp)
	}
}

func TestVerifyOTPWithoutCheckEmail(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.post(t, "/api/verify-otp", map[string]string{"otp": "123456"})
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 before any check-email, got %d", status)
	}
	if resp.Success {
		t.Errorf("Unexpected success: %+v", resp)
	}
}

func TestGuardedEndpointsWithoutVerification(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.post(t, "/api/domain-suggestions", map[string]string{"domain": "widgets"})
	if status != http.StatusUnauthorized {
		t.Errorf("domain-suggestions: expected 401, got %d", status)
	}
	if resp.Message != "Session expired. Please log in again." {
		t.Errorf("Unexpected message %q", resp.Message)
	}

	status, _ = env.post(t, "/api/chat", map[string]string{"query": "hello"})
	if status != http.StatusUnauthorized {
		t.Errorf("chat: expected 401, got %d", status)
	}
}

func TestFullFlow(t *testing.T) {
	env := newTestEnv(t)
	env.llm.replies = []string{
		"1. widgets.io\n2. widgetly.com\n3. getwidgets.net",
		"Register it before someone else does.",
	}

	// check-email issues and mails an OTP.
	status, resp := env.post(t, "/api/check-email", map[string]string{"email": "a@b.com"})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("check-email: expected success, got %d %+v", status, resp)
	}
	if resp.Message != "OTP sent to your email address." {
		t.Errorf("Unexpected message %q", resp.Message)
	}
	if env.mail.sent != 1 {
		t.Errorf("Expected 1 mail sent, got %d", env.mail.sent)
	}

	code := env.storedCode(t, "a@b.com")

	// A wrong code is rejected without consuming the record.
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	status, resp = env.post(t, "/api/verify-otp", map[string]string{"otp": wrong})
	if status != http.StatusBadRequest || resp.Message != "Invalid OTP." {
		t.Fatalf("verify-otp wrong code: expected 400 Invalid OTP., got %d %+v", status, resp)
	}

	// The correct code verifies the session.
	status, resp = env.post(t, "/api/verify-otp", map[string]string{"otp": code})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("verify-otp: expected success, got %d %+v", status, resp)
	}

	// Verification is single-use.
	status, resp = env.post(t, "/api/verify-otp", map[string]string{"otp": code})
	if status != http.StatusNotFound || resp.Message != "OTP not found or expired." {
		t.Fatalf("repeated verify-otp: expected 404, got %d %+v", status, resp)
	}

	// Chat before suggestions violates the flow order.
	status, resp = env.post(t, "/api/chat", map[string]string{"query": "hello"})
	if status != http.StatusBadRequest || resp.Message != "Please get domain suggestions first." {
		t.Fatalf("early chat: expected 400, got %d %+v", status, resp)
	}

	status, resp = env.post(t, "/api/domain-suggestions", map[string]string{"domain": "widgets"})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("domain-suggestions: expected success, got %d %+v", status, resp)
	}
	if len(resp.Suggestions) != 3 {
		t.Errorf("Expected 3 suggestions, got %v", resp.Suggestions)
	}
	if resp.Message != "Domain suggestions provided. Now you can ask anything!" {
		t.Errorf("Unexpected message %q", resp.Message)
	}

	status, resp = env.post(t, "/api/chat", map[string]string{"query": "should I buy widgets.io?"})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("chat: expected success, got %d %+v", status, resp)
	}
	if resp.Answer != "Register it before someone else does." {
		t.Errorf("Unexpected answer %q", resp.Answer)
	}
}

func TestChatMissingQuery(t *testing.T) {
	env := newTestEnv(t)
	env.llm.replies = []string{"1. widgets.io"}

	if status, _ := env.post(t, "/api/check-email", map[string]string{"email": "a@b.com"}); status != http.StatusOK {
		t.Fatalf("check-email failed with %d", status)
	}
	code := env.storedCode(t, "a@b.com")
	if status, _ := env.post(t, "/api/verify-otp", map[string]string{"otp": code}); status != http.StatusOK {
		t.Fatalf("verify-otp failed with %d", status)
	}
	if status, _ := env.post(t, "/api/domain-suggestions", map[string]string{"domain": "widgets"}); status != http.StatusOK {
		t.Fatalf("domain-suggestions failed with %d", status)
	}

	status, resp := env.post(t, "/api/chat", map[string]string{"query": ""})
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", status)
	}
	if resp.Success || resp.Message != "Query is required." {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestResendOTP(t *testing.T) {
	env := newTestEnv(t)

	// Resend with no bound email is a bad request.
	status, resp := env.post(t, "/api/resend-otp", map[string]string{})
	if status != http.StatusBadRequest || resp.Message != "Email is required." {
		t.Fatalf("Expected 400 Email is required., got %d %+v", status, resp)
	}

	if status, _ := env.post(t, "/api/check-email", map[string]string{"email": "a@b.com"}); status != http.StatusOK {
		t.Fatalf("check-email failed with %d", status)
	}
	code := env.storedCode(t, "a@b.com")

	status, resp = env.post(t, "/api/resend-otp", map[string]string{})
	if status != http.StatusOK || resp.Message != "OTP resent to your email address." {
		t.Fatalf("Expected resend of existing code, got %d %+v", status, resp)
	}
	if got := env.storedCode(t, "a@b.com"); got != code {
		t.Errorf("Expected code unchanged on resend, got %q want %q", got, code)
	}
	if env.mail.sent != 2 {
		t.Errorf("Expected 2 mails sent, got %d", env.mail.sent)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.Post(env.server.URL+"/api/check-email", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", resp.StatusCode)
	}
}
