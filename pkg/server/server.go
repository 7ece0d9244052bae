// Package server hosts the dashboard: it polls the configured data source on
// an interval, keeps the latest canonical model, and serves it alongside the
// embedded web frontend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/levenlabs/go-lflag"

	"github.com/mikechalmers/bespokely-solar/pkg/common"
	"github.com/mikechalmers/bespokely-solar/pkg/log"
	"github.com/mikechalmers/bespokely-solar/pkg/solar"
	"github.com/mikechalmers/bespokely-solar/pkg/types"
	"github.com/mikechalmers/bespokely-solar/web"
)

// Server polls the solar data source and exposes the dashboard over HTTP.
type Server struct {
	listenAddr       string
	configPath       string
	webCacheDuration time.Duration
	serverName       string

	// newSource is swapped out in tests.
	newSource func(solar.Config) solar.Source

	// refreshCh coalesces manual refresh requests.
	refreshCh chan struct{}

	mu         sync.Mutex
	model      *types.DashboardModel
	cancelPoll context.CancelFunc

	httpServer *http.Server
}

// Configured initializes the Server and registers its command-line flags.
func Configured() *Server {
	srv := &Server{
		serverName: "bespokely-solar/" + common.Version(),
		newSource:  solar.NewSource,
		refreshCh:  make(chan struct{}, 1),
	}

	// honor PORT when running under a PaaS
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	configPath := lflag.String("config", "", "Path to the dashboard yaml config (merged over compiled defaults)")
	webCacheDuration := lflag.Duration("web-cache-duration", 0, "Duration to cache web files (e.g. 1h, 5m). 0 means no cache.")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.configPath = *configPath
		srv.webCacheDuration = *webCacheDuration
	})

	return srv
}

// resolveConfig re-reads the config file over the compiled defaults. It is
// called once per poll cycle so file edits take effect on the next run.
func (s *Server) resolveConfig(ctx context.Context) solar.Config {
	cfg, err := solar.LoadConfig(s.configPath)
	if err != nil {
		// LoadConfig already fell back to usable defaults
		log.Ctx(ctx).WarnContext(ctx, "failed to load config, using defaults",
			slog.String("path", s.configPath), slog.Any("error", err))
	}
	return cfg
}

// refresh runs one pipeline invocation. At most one invocation is meaningful
// at a time: starting a new one cancels any still in flight, and the
// superseded invocation's cancellation error is logged quietly rather than
// reported as a failure. On any other failure the previous model stays
// published.
func (s *Server) refresh(ctx context.Context) {
	s.mu.Lock()
	if s.cancelPoll != nil {
		s.cancelPoll()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancelPoll = cancel
	s.mu.Unlock()
	defer cancel()

	cfg := s.resolveConfig(pollCtx)
	src := s.newSource(cfg)

	start := time.Now()
	model, err := src.Dashboard(pollCtx)
	if err != nil {
		if solar.IsCanceled(err) {
			log.Ctx(ctx).DebugContext(ctx, "poll superseded or shutting down", slog.Any("error", err))
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "dashboard fetch failed", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	s.model = &model
	s.mu.Unlock()

	log.Ctx(ctx).InfoContext(ctx, "dashboard updated",
		slog.Duration("took", time.Since(start)),
		slog.Float64("currentPowerKw", model.Overview.CurrentPowerKw),
		slog.Float64("todayEnergyKwh", model.Overview.TodayEnergyKwh),
		slog.Int("powerPoints", len(model.Power.Points)),
		slog.Int("energyDays", len(model.Energy.Days)),
	)
}

// pollLoop refreshes immediately, then on every poll interval or manual
// refresh signal. Each refresh runs in its own goroutine so a new trigger
// can supersede a slow in-flight poll.
func (s *Server) pollLoop(ctx context.Context) {
	ctx = log.WithComponent(ctx, "poller")
	go s.refresh(ctx)

	for {
		interval := s.resolveConfig(ctx).PollInterval()
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.refreshCh:
			timer.Stop()
		case <-timer.C:
		}
		go s.refresh(ctx)
	}
}

func (s *Server) setupHandler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/dashboard", s.handleDashboard).Methods("GET")
	r.HandleFunc("/api/refresh", s.handleRefresh).Methods("POST")
	r.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	staticFS, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		panic(fmt.Errorf("failed to get web static fs: %w", err))
	}
	r.PathPrefix("/").Handler(s.webHandler(staticFS, http.FileServer(http.FS(staticFS))))

	logged := handlers.LoggingHandler(os.Stdout, r)
	return s.serverHeaderMiddleware(gziphandler.GzipHandler(logged))
}

// Run starts the poll loop and the HTTP server, blocking until the context
// is canceled or the server fails. Shutdown is graceful.
func (s *Server) Run(ctx context.Context) error {
	go s.pollLoop(ctx)

	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

// handleDashboard serves the latest canonical model. Before the first
// successful poll there is nothing to show and consumers get a generic
// data-unavailable error.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	model := s.model
	s.mu.Unlock()

	if model == nil {
		writeJSONError(w, "data unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(model); err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to write dashboard response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

// handleRefresh schedules an immediate poll, superseding any in flight.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	select {
	case s.refreshCh <- struct{}{}:
	default:
		// a refresh is already pending
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
	}{Status: "refresh scheduled"}); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// webHandler serves the embedded frontend, falling back to index.html for
// unknown paths.
func (s *Server) webHandler(dir fs.FS, h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			f, err := dir.Open(strings.TrimPrefix(r.URL.Path, "/"))
			if err == nil {
				f.Close()
			} else if errors.Is(err, fs.ErrNotExist) {
				r.URL.Path = "/"
			} else {
				log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to open file", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}
		if s.webCacheDuration > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.webCacheDuration.Seconds())))
		}
		h.ServeHTTP(w, r)
	}
}

func (s *Server) serverHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
