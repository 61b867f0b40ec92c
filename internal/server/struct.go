package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/manualiq-go/internal/answer"
	"github.com/54b3r/manualiq-go/internal/references"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// answerer is the interface handleAnswer calls to answer a question.
// *answer.Service satisfies it; tests inject a fake.
type answerer interface {
	// Answer decomposes, retrieves, and synthesizes an answer for question.
	Answer(ctx context.Context, question string) (*answer.Result, error)
}

// Server is the HTTP server that exposes the answer service.
type Server struct {
	// svc answers questions against the indexed manual.
	svc answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus metrics owned by this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// answerRequest is the JSON body for POST /api/answer.
type answerRequest struct {
	// Question is the user's natural language question about the manual.
	Question string `json:"question"`
}

// answerResponse is the JSON response for POST /api/answer.
type answerResponse struct {
	// Answer is the synthesized answer text.
	Answer string `json:"answer"`
	// References holds the table and figure citations backing the answer.
	References references.References `json:"references"`
}
