// Package main runs a standalone HTTP harness around the search
// engine for manual and scripted exercising outside of a browser
// runtime. It is not part of the engine itself: the engine's only
// contract is the in-process Engine façade in internal/engine, and a
// real embedder wires that façade into its own host page rather than
// talking to it over HTTP. This harness exists purely as the
// project's dev/test surface, the same role cmd/server plays for the
// teacher project.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tourscope/internal/config"
	"github.com/tomtom215/tourscope/internal/datasource"
	"github.com/tomtom215/tourscope/internal/engine"
	"github.com/tomtom215/tourscope/internal/logging"
	"github.com/tomtom215/tourscope/internal/record"
	"github.com/tomtom215/tourscope/internal/tour"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{Level: "info", Format: "console"})
	logging.Info().Msg("starting tourscope demo harness")

	eng := engine.Create(cfg, datasource.NewHTTPFetcher())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The demo harness has no browser-hosted tour runtime to attach
	// to, so it exercises the engine against tour.Fake, the same
	// double the package's own tests use.
	if err := eng.Load(ctx, tour.NewFake()); err != nil {
		logging.Fatal().Err(err).Msg("failed to load demo tour")
	}
	defer eng.Destroy()

	srv := &http.Server{
		Addr:         addr(),
		Handler:      newRouter(eng),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("demo harness listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("demo harness server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("demo harness did not shut down cleanly")
	}
	logging.Info().Msg("demo harness stopped")
}

func addr() string {
	if port := os.Getenv("TOURSCOPEDEMO_PORT"); port != "" {
		return ":" + port
	}
	return ":8877"
}

// newRouter wires the engine behind a chi router with the same global
// middleware shape as the teacher's SetupChi: request recovery and
// real-IP extraction ahead of CORS, rate limiting scoped to the API
// route group.
func newRouter(eng *engine.Engine) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(120, time.Minute))

		r.Get("/query", handleQuery(eng))
		r.Post("/activate", handleActivate(eng))
		r.Post("/config", handleUpdateConfig(eng))
		r.Get("/diagnostics", handleDiagnostics(eng))
	})

	return r
}

func handleQuery(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("term")
		groups := eng.Query(term)
		writeJSON(w, http.StatusOK, groups)
	}
}

func handleActivate(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec record.IndexRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		outcome, err := eng.Activate(r.Context(), rec)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"outcome": outcome.String(),
				"error":   err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"outcome": outcome.String()})
	}
}

func handleUpdateConfig(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var partial map[string]any
		if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := eng.Update(r.Context(), partial); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	}
}

func handleDiagnostics(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Diagnostics())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("demo harness: failed to encode response")
	}
}
