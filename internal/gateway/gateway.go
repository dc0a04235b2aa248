// ABOUTME: Gateway orchestrator that coordinates update delivery and the bot
// ABOUTME: Manages the store, dedup ledger, Telegram client and server lifecycle

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/pollgate/internal/bot"
	"github.com/2389/pollgate/internal/config"
	"github.com/2389/pollgate/internal/dedupe"
	"github.com/2389/pollgate/internal/poll"
	"github.com/2389/pollgate/internal/store"
	"github.com/2389/pollgate/internal/telegram"
)

// Telegram processes webhook updates strictly one at a time per webhook
// connection; a single connection keeps ordering simple.
const webhookMaxConnections = 1

// Gateway orchestrates the pollgate server components. It owns the store,
// the dedup ledger and the Telegram client, and runs either the webhook
// HTTP server or the long-poll loop depending on configuration.
type Gateway struct {
	config     *config.Config
	store      *store.SQLiteStore
	ledger     *dedupe.Ledger
	router     *bot.Router
	tg         *telegram.Client
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the store based on config and environment.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("POLLGATE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	tg, err := telegram.NewClient(telegram.ClientConfig{
		Token:    cfg.Telegram.Token,
		BaseURL:  cfg.Telegram.BaseURL,
		ProxyURL: cfg.Telegram.ProxyURL,
		PoolSize: cfg.Telegram.PoolSize,
		Timeout:  cfg.Telegram.Timeout,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}

	g := &Gateway{
		config: cfg,
		store:  s,
		ledger: dedupe.New(s, cfg.Dedup.Retention),
		router: bot.NewRouter(poll.NewService(s), tg),
		tg:     tg,
		logger: logger.With("component", "gateway"),
	}

	if cfg.Server.Mode == config.ModeWebhook {
		mux := chi.NewRouter()
		mux.Get("/health", g.handleHealth)
		mux.Post("/webhook/{secret}", g.handleWebhook)

		g.httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return g, nil
}

// Run starts update delivery and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if a
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	if g.config.Server.Mode == config.ModeWebhook {
		return g.runWebhook(ctx)
	}
	return g.runLongPoll(ctx)
}

// runWebhook registers the webhook with Telegram and serves it until the
// context is canceled.
func (g *Gateway) runWebhook(ctx context.Context) error {
	webhookURL := strings.TrimSuffix(g.config.Server.PublicURL, "/") + "/webhook/" + g.config.Server.WebhookSecret
	if err := g.tg.SetWebhook(ctx, webhookURL, webhookMaxConnections); err != nil {
		return fmt.Errorf("registering webhook: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", g.config.Server.HTTPAddr)
		if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// runLongPoll pulls updates from the Bot API until the context is canceled.
func (g *Gateway) runLongPoll(ctx context.Context) error {
	poller := telegram.NewPoller(g.tg, g.processUpdate)

	g.logger.Info("starting long-poll loop")
	err := poller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		// Graceful stop, not a failure
		err = nil
	}

	if shutdownErr := g.gracefulShutdown(); err == nil {
		return shutdownErr
	}
	return err
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the gateway and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if g.httpServer != nil {
		if err := g.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
		}
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleWebhook receives one Telegram update per request. The path secret
// is the only authentication: a mismatch is indistinguishable from an
// unknown route. Telegram retries deliveries it considers failed, so the
// response is 200 whenever the update was accepted, even if processing
// produced no outbound traffic.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "secret") != g.config.Server.WebhookSecret {
		http.NotFound(w, r)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		g.logger.Warn("undecodable webhook payload", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := g.processUpdate(r.Context(), &update); err != nil {
		// Telegram only redelivers on a non-2xx response
		g.logger.Error("update not processed, requesting redelivery", "update_id", update.UpdateID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// processUpdate passes one update through the dedup ledger and on to the
// bot. Updates without an id cannot be deduplicated and are processed
// as-is. A ledger fault is returned to the caller so delivery can be
// retried: processing without the dedup guarantee risks double-applied
// votes, and dropping the update without failing the delivery would lose
// it permanently.
func (g *Gateway) processUpdate(ctx context.Context, update *telegram.Update) error {
	if update.UpdateID != 0 {
		admitted, err := g.ledger.Admit(ctx, update.UpdateID)
		if err != nil {
			return fmt.Errorf("dedup ledger: %w", err)
		}
		if !admitted {
			g.logger.Debug("skipping duplicate update", "update_id", update.UpdateID)
			return nil
		}
	}

	g.router.HandleUpdate(ctx, update)
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
