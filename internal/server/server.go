// ABOUTME: HTTP server wiring routes, auth middleware, and lifecycle
// ABOUTME: Runs the API and the reminder scheduler under one errgroup

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskstream/assistant/internal/action"
	"github.com/taskstream/assistant/internal/auth"
	"github.com/taskstream/assistant/internal/chat"
	"github.com/taskstream/assistant/internal/config"
	"github.com/taskstream/assistant/internal/scheduler"
	"github.com/taskstream/assistant/internal/store"
)

// Server is the taskstream HTTP API server.
type Server struct {
	cfg      *config.Config
	store    store.Store
	actions  *action.Registry
	orch     *chat.Orchestrator
	sched    *scheduler.Scheduler
	verifier *auth.JWTVerifier
	logger   *slog.Logger

	httpServer *http.Server
}

// New wires the server. The scheduler may be nil (e.g. in tests that only
// exercise the API surface).
func New(cfg *config.Config, st store.Store, orch *chat.Orchestrator, actions *action.Registry, sched *scheduler.Scheduler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		store:    st,
		actions:  actions,
		orch:     orch,
		sched:    sched,
		verifier: auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		logger:   logger.With("component", "server"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	// Everything below requires a valid bearer token.
	protect := auth.Middleware(s.store, s.verifier)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	handle("GET /api/dialogues", s.handleListDialogues)
	handle("POST /api/dialogues", s.handleCreateDialogue)
	handle("GET /api/dialogues/{id}", s.handleGetDialogue)
	handle("PATCH /api/dialogues/{id}", s.handleRenameDialogue)
	handle("DELETE /api/dialogues/{id}", s.handleDeleteDialogue)
	handle("POST /api/dialogues/{id}/messages/stream", s.handleStreamMessage)

	handle("POST /api/actions/{id}/confirm", s.handleConfirmAction)
	handle("POST /api/actions/{id}/cancel", s.handleCancelAction)

	handle("GET /api/assistant/config", s.handleGetAssistantConfig)
	handle("PUT /api/assistant/config", s.handlePutAssistantConfig)

	handle("GET /api/tasks", s.handleListTasks)
	handle("POST /api/tasks", s.handleCreateTask)
	handle("GET /api/tasks/{id}", s.handleGetTask)
	handle("PUT /api/tasks/{id}", s.handleUpdateTask)
	handle("DELETE /api/tasks/{id}", s.handleDeleteTask)

	handle("GET /api/long-term-tasks", s.handleListLongTermTasks)
	handle("POST /api/long-term-tasks", s.handleCreateLongTermTask)
	handle("GET /api/long-term-tasks/{id}", s.handleGetLongTermTask)
	handle("PUT /api/long-term-tasks/{id}", s.handleUpdateLongTermTask)
	handle("DELETE /api/long-term-tasks/{id}", s.handleDeleteLongTermTask)

	handle("GET /api/journals", s.handleListJournals)
	handle("GET /api/journals/{date}", s.handleGetJournal)
	handle("PUT /api/journals/{date}", s.handlePutJournal)

	handle("GET /api/memo", s.handleGetMemo)
	handle("PUT /api/memo", s.handlePutMemo)

	return mux
}

// Run serves HTTP and the reminder scheduler until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.HTTPAddr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", "addr", ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.sched != nil {
		g.Go(func() error {
			if err := s.sched.Run(ctx, 0); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": s.orch.Runs().Len(),
	})
}
