package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/manualiq-go/internal/answer"
	"github.com/54b3r/manualiq-go/internal/references"
)

// fakeAnswerer is a test double for the answer service.
type fakeAnswerer struct {
	// result is returned by Answer when err is nil.
	result *answer.Result
	// err is returned by Answer; nil means success.
	err error
	// lastQuestion records the question passed to Answer.
	lastQuestion string
}

func (f *fakeAnswerer) Answer(_ context.Context, question string) (*answer.Result, error) {
	f.lastQuestion = question
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// newTestServer builds a *Server wired to a successful fake answerer and a
// fresh metrics registry.
func newTestServer() *Server {
	s, err := newWithRegistry(&fakeAnswerer{result: &answer.Result{Answer: "ok"}}, &Config{}, prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return s
}

// newAnswerTestServer builds a *Server around the provided fake.
func newAnswerTestServer(t *testing.T, fake *fakeAnswerer, cfg *Config) *Server {
	t.Helper()
	s, err := newWithRegistry(fake, cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

func TestHandleAnswer_OK(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{result: &answer.Result{
		Answer: "Fill each axle to the level plug.",
		References: references.References{
			Tables: []references.TableReference{{SubQuestion: "capacity?", ElementID: "table-2-1", PageNumber: 2}},
		},
	}}
	s := newAnswerTestServer(t, fake, &Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"question":"How much oil?"}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if fake.lastQuestion != "How much oil?" {
		t.Errorf("question not forwarded, got %q", fake.lastQuestion)
	}

	var resp answerResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Fill each axle to the level plug." {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.References.Tables) != 1 || resp.References.Tables[0].ElementID != "table-2-1" {
		t.Errorf("references missing from response: %+v", resp.References)
	}

	if got := testutil.ToFloat64(s.metrics.answerRequestsTotal.WithLabelValues(outcomeOK)); got != 1 {
		t.Errorf("answer ok counter = %v, want 1", got)
	}
}

func TestHandleAnswer_EmptyQuestion(t *testing.T) {
	t.Parallel()

	s := newAnswerTestServer(t, &fakeAnswerer{}, &Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"question":""}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleAnswer_InvalidBody(t *testing.T) {
	t.Parallel()

	s := newAnswerTestServer(t, &fakeAnswerer{}, &Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleAnswer_ServiceError(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{err: errors.New("qdrant unavailable")}
	s := newAnswerTestServer(t, fake, &Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	// The underlying error must not leak to the client.
	if strings.Contains(w.Body.String(), "qdrant") {
		t.Errorf("internal error leaked to response: %s", w.Body.String())
	}
	if got := testutil.ToFloat64(s.metrics.answerRequestsTotal.WithLabelValues(outcomeError)); got != 1 {
		t.Errorf("answer error counter = %v, want 1", got)
	}
}

func TestHandleAnswer_RequiresAuthWhenConfigured(t *testing.T) {
	t.Parallel()

	s := newAnswerTestServer(t, &fakeAnswerer{result: &answer.Result{Answer: "ok"}}, &Config{APIKey: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d — body: %s", w.Code, w.Body.String())
	}
}

// Health and readiness stay open even when the answer API requires a token.
func TestHealthEndpointsUnauthenticated(t *testing.T) {
	t.Parallel()

	s := newAnswerTestServer(t, &fakeAnswerer{result: &answer.Result{Answer: "ok"}}, &Config{APIKey: "secret"})

	for _, path := range []string{"/api/health", "/api/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
}
