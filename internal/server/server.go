// Package server receives forge webhooks over HTTP and hands them to the bot.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bf2/archbot/internal/bot"
	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/git"
	"github.com/bf2/archbot/internal/logging"
)

// Handler reacts to decoded webhook events.
type Handler interface {
	HandlePullRequest(ctx context.Context, ev forge.PullRequestEvent) (*bot.Outcome, error)
	HandleIssueComment(ctx context.Context, ev forge.IssueCommentEvent) (*bot.Outcome, error)
}

// Server provides the webhook and health endpoints.
type Server struct {
	handler Handler
	secret  string
	version string
	started time.Time
}

// NewServer creates a server. Deliveries are verified against secret unless
// it is empty.
func NewServer(h Handler, secret, version string) *Server {
	return &Server{handler: h, secret: secret, version: version, started: time.Now()}
}

// Router returns an http.Handler for the server routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.webhook)
	mux.HandleFunc("GET /healthz", s.healthz)
	return logRequests(mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		slog.InfoContext(ctx, "shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

type webhookResponse struct {
	Delivery    string   `json:"delivery"`
	Event       string   `json:"event"`
	Handled     bool     `json:"handled"`
	Mutations   []string `json:"mutations,omitempty"`
	Annotations int      `json:"annotations,omitempty"`
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	d, err := git.ReadWebhook(r, s.secret)
	if err != nil {
		slog.WarnContext(r.Context(), "rejected delivery", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if d.ID == "" {
		d.ID = newDeliveryID()
	}
	ctx := logging.With(r.Context(), slog.String("delivery", d.ID), slog.String("event", d.Event))

	resp := webhookResponse{Delivery: d.ID, Event: d.Event}
	var out *bot.Outcome
	switch ev := d.Payload.(type) {
	case *forge.PullRequestEvent:
		out, err = s.handler.HandlePullRequest(ctx, *ev)
	case *forge.IssueCommentEvent:
		out, err = s.handler.HandleIssueComment(ctx, *ev)
	default:
		slog.DebugContext(ctx, "ignoring event")
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "handling delivery failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp.Handled = true
	if out != nil {
		for _, m := range out.Mutations {
			resp.Mutations = append(resp.Mutations, m.String())
		}
		resp.Annotations = len(out.Annotations)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func newDeliveryID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}
