// Package server exposes the daemon over HTTP: the runtime message endpoint,
// the reporting API, and a websocket stream of store changes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/campaign"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/outreach"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
)

type Server struct {
	st    *store.Store
	sched *campaign.Scheduler
	rec   *outreach.Records
	log   *slog.Logger
}

func New(st *store.Store, sched *campaign.Scheduler, rec *outreach.Records, log *slog.Logger) *Server {
	return &Server{st: st, sched: sched, rec: rec, log: log.With("module", "server")}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLog)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		okJSON(w, map[string]string{"status": "ok"})
	})
	r.Post("/rpc", s.handleRPC)
	r.Get("/ws", s.handleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/campaign", func(r chi.Router) {
			r.Get("/", s.campaignStatus)
			r.Post("/start", s.campaignStart)
			r.Post("/stop", s.campaignStop)
		})

		r.Get("/visits", s.visitStats)
		r.Get("/visits/top", s.visitTop)
		r.Get("/visits.csv", s.visitCSV)

		r.Get("/logs", s.listLogs)
		r.Patch("/logs/{index}", s.patchLog)
		r.Get("/logs.csv", s.logCSV)
		r.Get("/logs/stats", s.logStats)

		r.Get("/clients", s.listClients)
		r.Post("/clients", s.addClient)
		r.Put("/clients/active", s.setActiveClient)
		r.Route("/clients/{id}", func(r chi.Router) {
			r.Post("/templates", s.addTemplate)
			r.Put("/templates/{index}", s.updateTemplate)
			r.Delete("/templates/{index}", s.deleteTemplate)
			r.Put("/default", s.setDefaultTemplate)
		})

		r.Get("/tags", s.listTags)
		r.Post("/tags", s.addTag)
		r.Get("/notes", s.getNote)
		r.Put("/notes", s.setNote)

		r.Post("/preview", s.preview)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
