package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/experiment"
	"github.com/sells-group/facet-cli/internal/similarity"
	"github.com/sells-group/facet-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API over experiments, predictions, and similarity search",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		searcher := newSearcher(st)

		// Prediction endpoints need an API key; without one the server
		// still serves the read-only routes.
		var orch *experiment.Orchestrator
		if cfg.Anthropic.Key != "" {
			orch, err = initOrchestrator(st, searcher)
			if err != nil {
				return err
			}
		} else {
			zap.L().Warn("no anthropic key configured, prediction endpoints disabled")
		}

		handler := buildRouter(ctx, st, searcher, orch)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		stats := searcher.CacheStats()
		zap.L().Info("similarity cache stats",
			zap.Int("entries", stats.Entries),
			zap.Int64("hits", stats.Hits),
			zap.Int64("misses", stats.Misses),
			zap.Float64("hit_rate", stats.HitRate),
		)
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type apiServer struct {
	runCtx       context.Context // outlives requests; cancelled on shutdown
	store        store.Store
	searcher     *similarity.Searcher
	orchestrator *experiment.Orchestrator // nil when no API key is configured
}

// buildRouter assembles the API routes. Background experiment runs are
// bound to ctx rather than the request context.
func buildRouter(ctx context.Context, st store.Store, searcher *similarity.Searcher, orch *experiment.Orchestrator) http.Handler {
	api := &apiServer{runCtx: ctx, store: st, searcher: searcher, orchestrator: orch}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/health", api.health)
	r.Get("/experiments", api.listExperiments)
	r.Get("/experiments/{key}", api.getExperiment)
	r.Get("/experiments/{key}/predictions", api.listPredictions)
	r.Post("/experiments", api.runExperiment)
	r.Get("/products/{code}/predictions", api.predictProduct)
	r.Get("/products/{code}/similar", api.similarProducts)
	r.Get("/similarity/stats", api.cacheStats)

	return r
}

func (s *apiServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) listExperiments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	exps, err := s.store.ListExperiments(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exps)
}

func (s *apiServer) getExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.store.GetExperiment(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *apiServer) listPredictions(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := s.store.GetExperiment(r.Context(), key); err != nil {
		writeStoreError(w, err)
		return
	}
	preds, err := s.store.ListPredictions(r.Context(), key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

func (s *apiServer) runExperiment(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction is not configured")
		return
	}

	var req struct {
		Description  string         `json:"description"`
		ProductLimit int            `json:"product_limit"`
		Metadata     map[string]any `json:"metadata"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	// Runs outlive the request; progress is visible via GET /experiments.
	go func() {
		exp, err := s.orchestrator.Run(s.runCtx, experiment.RunOptions{
			Description:  req.Description,
			ProductLimit: req.ProductLimit,
			Metadata:     req.Metadata,
		})
		if err != nil {
			zap.L().Error("background experiment failed", zap.Error(err))
			return
		}
		zap.L().Info("background experiment complete",
			zap.String("experiment", exp.Key),
			zap.Float64("accuracy", exp.Accuracy),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *apiServer) predictProduct(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction is not configured")
		return
	}

	preds, err := s.orchestrator.PredictProduct(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

func (s *apiServer) similarProducts(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetProductByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp, err := s.searcher.SimilarProducts(r.Context(), product.Key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.searcher.CacheStats())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
