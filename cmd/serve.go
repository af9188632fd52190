package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-writer/internal/config"
	"github.com/sells-group/research-writer/internal/model"
	"github.com/sells-group/research-writer/internal/monitoring"
	"github.com/sells-group/research-writer/internal/pipeline"
	"github.com/sells-group/research-writer/internal/store"
)

var servePort int

// articleRunner is the part of *pipeline.Pipeline the server needs.
type articleRunner interface {
	Run(ctx context.Context, query string, obs pipeline.Observer) (*model.Record, error)
}

// server carries the HTTP handlers' dependencies.
type server struct {
	runner     articleRunner
	store      store.Store // may be nil
	collector  *monitoring.Collector
	registry   *prometheus.Registry
	runTimeout time.Duration
	lookback   int
}

type articleRequest struct {
	Query string `json:"query"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the article API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		env.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		s := &server{
			runner:     env.Pipeline,
			store:      env.Store,
			registry:   env.Registry,
			runTimeout: config.Timeout(cfg.Server.RunTimeoutSecs),
			lookback:   cfg.Monitoring.LookbackWindowHours,
		}
		if env.Store != nil {
			s.collector = monitoring.NewCollector(env.Store)
			go pruneLoop(ctx, env.Store, cfg.Store.RetentionDays)
			if cfg.Monitoring.Enabled {
				checker := monitoring.NewChecker(s.collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
				go checker.Run(ctx)
			}
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// routes builds the HTTP router.
func (s *server) routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/articles", s.handleArticle)
		r.Post("/articles/stream", s.handleArticleStream)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/checkpoints", s.handleCheckpoints)
		r.Get("/stats", s.handleStats)
	})
	return r
}

func (s *server) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.runTimeout > 0 {
		return context.WithTimeout(r.Context(), s.runTimeout)
	}
	return context.WithCancel(r.Context())
}

func decodeArticleRequest(w http.ResponseWriter, r *http.Request) (articleRequest, error) {
	var req articleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		return req, eris.Wrap(err, "decode request")
	}
	return req, nil
}

func (s *server) handleArticle(w http.ResponseWriter, r *http.Request) {
	req, err := decodeArticleRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := s.runContext(r)
	defer cancel()

	rec, err := s.runner.Run(ctx, req.Query, nil)
	if err != nil {
		zap.L().Error("article run failed", zap.String("query", req.Query), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fatalNotice)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// streamEvent is one NDJSON line of a streamed run.
type streamEvent struct {
	Stage  model.Stage   `json:"stage,omitempty"`
	Record *model.Record `json:"record,omitempty"`
	Error  string        `json:"error,omitempty"`
	Done   bool          `json:"done,omitempty"`
}

func (s *server) handleArticleStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeArticleRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := s.runContext(r)
	defer cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	emit := func(ev streamEvent) {
		if err := enc.Encode(ev); err != nil {
			zap.L().Debug("stream write failed", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	obs := pipeline.ObserverFunc(func(stage model.Stage, rec *model.Record) {
		emit(streamEvent{Stage: stage, Record: rec})
	})
	if _, err := s.runner.Run(ctx, req.Query, obs); err != nil {
		zap.L().Error("article stream failed", zap.String("query", req.Query), zap.Error(err))
		emit(streamEvent{Error: fatalNotice, Done: true})
		return
	}
	emit(streamEvent{Done: true})
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store disabled")
		return
	}
	filter := model.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store disabled")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		zap.L().Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type checkpointView struct {
	Stage     model.Stage     `json:"stage"`
	Record    json.RawMessage `json:"record"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store disabled")
		return
	}
	id := chi.URLParam(r, "id")
	cps, err := s.store.ListCheckpoints(r.Context(), id)
	if err != nil {
		zap.L().Error("list checkpoints failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list checkpoints")
		return
	}
	if len(cps) == 0 {
		writeError(w, http.StatusNotFound, "no checkpoints for run")
		return
	}
	out := make([]checkpointView, 0, len(cps))
	for _, cp := range cps {
		out = append(out, checkpointView{Stage: cp.Stage, Record: json.RawMessage(cp.Data), CreatedAt: cp.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "run store disabled")
		return
	}
	lookback := s.lookback
	if lookback <= 0 {
		lookback = 24
	}
	snap, err := s.collector.Collect(r.Context(), lookback)
	if err != nil {
		zap.L().Error("collect stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// pruneLoop deletes runs older than the retention window once an hour.
func pruneLoop(ctx context.Context, st store.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	prune := func() {
		cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
		n, err := st.PruneRuns(ctx, cutoff)
		if err != nil {
			zap.L().Warn("prune runs failed", zap.Error(err))
			return
		}
		if n > 0 {
			zap.L().Info("pruned old runs", zap.Int("count", n), zap.Int("retention_days", retentionDays))
		}
	}

	prune()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
