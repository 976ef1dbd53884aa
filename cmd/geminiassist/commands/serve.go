package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/geminiassist/geminiassist/internal/attach"
	"github.com/geminiassist/geminiassist/internal/config"
	"github.com/geminiassist/geminiassist/internal/consult"
	"github.com/geminiassist/geminiassist/internal/gateway"
	"github.com/geminiassist/geminiassist/internal/logging"
	"github.com/geminiassist/geminiassist/internal/ratelimit"
	"github.com/geminiassist/geminiassist/internal/server"
	"github.com/geminiassist/geminiassist/internal/session"
)

var (
	serveHTTPAddr string
	serveDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Run the Gemini consultation MCP server. Tool requests are served over
stdio; all diagnostics go to stderr. With --http-addr, a read-only status
API (health probe, session listing) is served alongside.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "Optional address for the status HTTP server (e.g. 127.0.0.1:8790)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory for config discovery")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir := serveDir
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return err
		}
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Init(logging.Options{Level: cfg.LogLevel, Pretty: prettyLogs})

	if err := cfg.Validate(); err != nil {
		return err
	}

	gw := gateway.NewClient(cfg.APIKey,
		gateway.WithModel(cfg.Model),
		gateway.WithSystemPrompt(cfg.SystemPrompt),
		gateway.WithGenerationConfig(gateway.GenerationConfig{
			Temperature:     config.Temperature,
			MaxOutputTokens: config.MaxOutputTokens,
			TopP:            config.TopP,
			TopK:            config.TopK,
		}),
	)

	store := session.NewStore(gw)
	limiter := ratelimit.New(cfg.RequestSpacing)
	attacher := attach.NewProcessor(gw, limiter, cfg.FilePollInterval, cfg.FileTimeout)
	orc := consult.New(store, attacher, limiter)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The reaper runs for the whole process lifetime, started here rather
	// than lazily on first tool call.
	go session.NewReaper(store, cfg.ReapInterval, cfg.SessionTTL).Run(ctx)

	if serveHTTPAddr != "" {
		startStatusServer(ctx, serveHTTPAddr, store)
	}

	log := logging.Component("main")
	log.Info().Str("version", Version).Str("model", cfg.Model).Msg("Gemini Coding Assistant MCP Server running")
	log.Info().Msg("features: session management, file attachments, context persistence, follow-up questions")
	log.Info().Msg("ready to help with complex coding problems")

	return mcpserver.ServeStdio(server.NewMCPServer(orc, store))
}

// startStatusServer runs the status API in the background and shuts it down
// when the context is cancelled.
func startStatusServer(ctx context.Context, addr string, store *session.Store) {
	log := logging.Component("status")
	srv := &http.Server{
		Addr:        addr,
		Handler:     server.NewStatusRouter(store),
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("status server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
