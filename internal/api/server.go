package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"modrelay/internal/config"
	"modrelay/internal/discord"
	"modrelay/internal/github"
	"modrelay/internal/ingest"
	"modrelay/internal/mail"
	"modrelay/internal/metrics"
	"modrelay/internal/types"
)

// Delivery abstracts the webhook client for handler tests.
type Delivery interface {
	Send(ctx context.Context, destination string, msg *discord.Message, opts discord.SendOptions) (*discord.Result, error)
}

// ArtifactFetcher pulls a build attachment for a completed workflow run.
type ArtifactFetcher interface {
	FetchRunArtifact(ctx context.Context, run *github.WorkflowRun) (*discord.Attachment, error)
}

// PollRunner executes one poll of a registered source.
type PollRunner interface {
	Run(ctx context.Context) (ingest.RunResult, error)
}

// MailTemplate maps a decoded mail notification to its delivery.
type MailTemplate func(m *mail.Message) (destination string, msg *discord.Message, opts discord.SendOptions)

// Dependencies holds everything the HTTP surface needs. All fields except
// Artifacts and Pollers are required.
type Dependencies struct {
	Delivery     Delivery
	Renderer     *github.Renderer
	Artifacts    ArtifactFetcher
	MailTemplate MailTemplate
	Pollers      map[string]PollRunner
	Metrics      metrics.DeliveryMetrics
	Logger       types.Logger
}

// Server is the inbound HTTP surface of the relay.
type Server struct {
	cfg    *config.Config
	deps   Dependencies
	router *chi.Mux
}

// NewServer builds the router with middleware and all routes mounted.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopMetrics()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
	}

	s.router.Use(RequestID)
	s.router.Use(Recoverer(deps.Logger))
	s.router.Use(RequestLogger(deps.Logger))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/hooks/github", s.handleGitHubWebhook)
	s.router.Post("/hooks/mail", s.handleMailWebhook)
	s.router.Post("/poll/{source}", s.handlePoll)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "route not found", nil))
	})

	return s
}

// Handler returns the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": s.cfg.Environment,
	})
}

// handlePoll triggers one poll of a registered source and returns its run
// summary. Used by cron jobs and manual operator triggers.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")

	poller, ok := s.deps.Pollers[name]
	if !ok {
		Error(w, r, types.NewAppError(types.ErrCodeNotFoundSource,
			"no such poll source: "+name, nil))
		return
	}

	result, err := poller.Run(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, result)
}
