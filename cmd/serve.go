package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridhound/gridhound/internal/model"
	"github.com/gridhound/gridhound/internal/pipeline"
	"github.com/gridhound/gridhound/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET"},
		}))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/api/projects", handleListProjects(env.Store))
		r.Get("/api/projects/{id}", handleGetProject(env.Store))
		r.Get("/api/runs", handleListRuns(env.Store))
		r.Get("/api/export.csv", handleExport(env.Store))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func handleListProjects(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := filterFromQuery(r)

		projects, err := st.ListProjects(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		total, err := st.CountProjects(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		if projects == nil {
			projects = []model.Project{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"total":    total,
			"projects": projects,
		})
	}
}

func handleGetProject(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := st.GetProject(r.Context(), chi.URLParam(r, "id"))
		if eris.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := st.ListRuns(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if runs == nil {
			runs = []model.RunRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

func handleExport(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="gridhound-export.csv"`)

		if _, err := pipeline.ExportCSV(r.Context(), st, w, filterFromQuery(r)); err != nil {
			zap.L().Error("export failed", zap.Error(err))
		}
	}
}

func filterFromQuery(r *http.Request) store.Filter {
	q := r.URL.Query()
	minScore, _ := strconv.Atoi(q.Get("min_score"))
	minCapacity, _ := strconv.ParseFloat(q.Get("min_capacity"), 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	return store.Filter{
		IncludeArchived: q.Get("archived") == "true",
		MinScore:        minScore,
		MinCapacityMW:   minCapacity,
		ProjectType:     model.ProjectType(q.Get("type")),
		State:           q.Get("state"),
		Limit:           limit,
		Offset:          offset,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
