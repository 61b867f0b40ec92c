package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/logging"
	"github.com/54b3r/manualiq-go/internal/server"
	"github.com/54b3r/manualiq-go/internal/tracing"
)

// NewServeCmd constructs the `manualiq serve` command, which starts the
// HTTP answering API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ManualIQ HTTP answering API",
		Long: `Start the ManualIQ HTTP server on localhost.

The server exposes POST /api/answer for question answering, plus health,
readiness, and Prometheus metrics endpoints. Readiness probes the chat
model, the Qdrant store, and the fastembed sidecar.

Set MANUALIQ_API_KEY to require Bearer authentication on /api/answer.

Examples:
  manualiq serve
  manualiq serve --port 9090
  MODEL_PROVIDER=azure manualiq serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			st, cleanup, err := buildStack(ctx, log)
			defer cleanup()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{
				server.NewLLMPinger(st.ChatModel, getEnvOrDefault("MODEL_PROVIDER", "ollama")),
				server.NewQdrantPinger(st.Qdrant.Client()),
			}
			if c, okc := st.Embedder.(*embedding.Composite); okc {
				pingers = append(pingers, server.NewFastEmbedPinger(c.Sidecar().BaseURL()))
			}

			if host == "" {
				host = getEnvOrDefault("SERVER_HOST", "127.0.0.1")
			}
			if port == 0 {
				port = getEnvInt("SERVER_PORT", 8080)
			}

			srv, err := server.New(st.Service, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("MANUALIQ_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: SERVER_HOST or 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: SERVER_PORT or 8080)")

	return cmd
}
