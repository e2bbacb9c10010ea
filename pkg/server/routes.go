package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/michelin/ns4kafka-go/pkg/acl"
	"github.com/michelin/ns4kafka-go/pkg/apply"
	"github.com/michelin/ns4kafka-go/pkg/audit"
	"github.com/michelin/ns4kafka-go/pkg/authz"
	"github.com/michelin/ns4kafka-go/pkg/principal"
	"github.com/michelin/ns4kafka-go/pkg/proxy"
	"github.com/michelin/ns4kafka-go/pkg/quota"
	"github.com/michelin/ns4kafka-go/pkg/tenancy"
)

// Router builds the HTTP routes.
//
//	/healthz, /livez, /readyz, /metrics         unauthenticated
//	/schema-registry-proxy/*, /connect-proxy/*  proxy secret
//	/audit-logs                                 admin
//	/api/namespaces[/{namespace}]               admin
//	/api/namespaces/{namespace}/...             role bindings
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{apply.ResultHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.healthHandler)
	r.Get("/livez", s.healthHandler)
	r.Get("/readyz", s.readyHandler)
	r.Handle("/metrics", s.metrics.Handler())

	r.Mount(proxy.SchemaRegistryPrefix, s.proxy)
	r.Mount(proxy.ConnectPrefix, s.proxy)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate())

		r.With(authz.RequireAdmin()).Get("/audit-logs", audit.LogsHandler(s.ring))

		r.Route("/api/namespaces", func(r chi.Router) {
			r.With(authz.RequireAdmin()).Get("/", s.handler.ListNamespaces)
			r.With(authz.RequireAdmin()).Post("/", s.handler.ApplyNamespace)

			r.Route("/{namespace}", func(r chi.Router) {
				r.Use(tenancy.Middleware(tenancy.PathResolver{}))
				r.With(authz.RequireAdmin()).Get("/", s.handler.GetNamespace)
				r.With(authz.RequireAdmin()).Delete("/", s.handler.DeleteNamespace)

				r.Group(func(r chi.Router) {
					r.Use(authz.Gate(s.authorizer, s.metrics, s.logger))
					r.Method(http.MethodGet, "/acls/_broker", acl.NewBrokerHandler(s.entries, s.namespaces, s.logger))
					r.Get("/resource-quotas/_usage", quota.UsageHandler(s.quotas))
					s.handler.MountResources(r)
				})
			})
		})
	})
	return r
}

func (s *Server) authenticate() func(http.Handler) http.Handler {
	if s.cfg.Security.TrustedHeaders {
		return principal.TrustedHeaders(s.roles)
	}
	return principal.Authenticate(s.resolver, s.roles, s.logger)
}

func (s *Server) corsOrigins() []string {
	if len(s.cfg.Server.CORSOrigins) > 0 {
		return s.cfg.Server.CORSOrigins
	}
	return []string{"https://*", "http://*"}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// readyHandler reports the database and startup state.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ready := s.ready.Load()

	dbStatus := map[string]string{"status": "up"}
	if s.db == nil {
		dbStatus["status"] = "not_configured"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus["status"] = "down"
		dbStatus["error"] = err.Error()
		ready = false
	} else if err := sqlDB.PingContext(r.Context()); err != nil {
		dbStatus["status"] = "down"
		dbStatus["error"] = err.Error()
		ready = false
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":   status,
		"leader":   s.leaderElector.IsLeader(),
		"clusters": s.clusters.Names(),
		"checks": map[string]any{
			"database": dbStatus,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
