// Package server assembles the control plane: stores, authentication,
// authorization, the apply API, the audit sink and the internal proxy.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/michelin/ns4kafka-go/pkg/acl"
	"github.com/michelin/ns4kafka-go/pkg/apply"
	"github.com/michelin/ns4kafka-go/pkg/audit"
	"github.com/michelin/ns4kafka-go/pkg/authz"
	"github.com/michelin/ns4kafka-go/pkg/config"
	"github.com/michelin/ns4kafka-go/pkg/ha"
	"github.com/michelin/ns4kafka-go/pkg/metrics"
	"github.com/michelin/ns4kafka-go/pkg/principal"
	"github.com/michelin/ns4kafka-go/pkg/proxy"
	"github.com/michelin/ns4kafka-go/pkg/quota"
	"github.com/michelin/ns4kafka-go/pkg/store"
)

// Server owns every long-lived component of one ns4kafka instance.
type Server struct {
	cfg    config.Config
	db     *gorm.DB
	logger *slog.Logger

	repo       *store.ObservedRepository
	gormRepo   *store.GormRepository
	namespaces *store.Namespaces
	bindings   *store.RoleBindings
	entries    *store.AccessControlEntries

	metrics    *metrics.Metrics
	authorizer authz.Authorizer
	resolver   principal.Resolver
	roles      *principal.RoleComputer
	directory  principal.Directory

	quotas  *quota.Service
	ctrl    *apply.Controller
	handler *apply.Handler

	ring        *audit.RingBuffer
	gormAudit   *audit.GormListener
	extraAudit  []audit.Listener
	sink        *audit.Sink
	closers     []func() error
	proxySecret string
	clusters    *proxy.Registry
	proxy       *proxy.Handler
	transport   http.RoundTripper
	connectors  apply.ConnectorClient

	migrationLocker ha.MigrationLocker
	leaderElector   *ha.LeaderElector

	startedAt time.Time
	ready     atomic.Bool
	bg        sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithDB supplies the database instead of opening cfg.Store.
func WithDB(db *gorm.DB) Option {
	return func(s *Server) { s.db = db }
}

// WithMetrics replaces the metrics registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDirectory adds a directory strategy after the local users.
func WithDirectory(d principal.Directory) Option {
	return func(s *Server) { s.directory = d }
}

// WithAuditListener appends a listener after the configured ones.
func WithAuditListener(l audit.Listener) Option {
	return func(s *Server) { s.extraAudit = append(s.extraAudit, l) }
}

// WithProxyTransport sets the transport the internal proxy forwards with.
func WithProxyTransport(rt http.RoundTripper) Option {
	return func(s *Server) { s.transport = rt }
}

// WithConnectorClient replaces the client the connector actions use.
func WithConnectorClient(c apply.ConnectorClient) Option {
	return func(s *Server) { s.connectors = c }
}

// WithMigrationLocker replaces the lock taken around schema migration.
func WithMigrationLocker(l ha.MigrationLocker) Option {
	return func(s *Server) { s.migrationLocker = l }
}

// WithLeaderElector replaces the elector gating background loops.
func WithLeaderElector(le *ha.LeaderElector) Option {
	return func(s *Server) { s.leaderElector = le }
}

// New builds a Server from cfg. Nothing is started until Init and Start.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: logger, startedAt: time.Now()}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	if err := s.setupStore(); err != nil {
		return nil, err
	}
	if err := s.setupAuth(); err != nil {
		return nil, err
	}
	if err := s.setupProxy(); err != nil {
		return nil, err
	}
	if err := s.setupAudit(); err != nil {
		s.closeAll()
		return nil, err
	}
	s.setupApply()

	if s.migrationLocker == nil {
		locker, err := ha.NewMigrationLocker(s.db, cfg.HA)
		if err != nil {
			s.closeAll()
			return nil, fmt.Errorf("migration lock: %w", err)
		}
		s.migrationLocker = locker
	}
	if s.leaderElector == nil {
		s.leaderElector = ha.NewLeaderElector(cfg.HA, nil, logger)
	}
	return s, nil
}

func (s *Server) setupStore() error {
	var inner store.Repository
	if s.db == nil && s.cfg.Store.Backend != store.BackendMemory {
		db, err := store.Open(s.cfg.Store)
		if err != nil {
			return err
		}
		s.db = db
	}
	if s.db != nil {
		s.gormRepo = store.NewGormRepository(s.db)
		inner = s.gormRepo
	} else {
		inner = store.NewMemoryRepository()
	}

	s.repo = store.NewObservedRepository(inner)
	s.namespaces = store.NewNamespaces(s.repo)
	s.bindings = store.NewRoleBindings(s.repo)
	s.entries = store.NewAccessControlEntries(s.repo)
	s.logger.Info("resource store ready", "backend", s.backendName())
	return nil
}

func (s *Server) backendName() string {
	if s.db == nil {
		return string(store.BackendMemory)
	}
	return s.db.Dialector.Name()
}

func (s *Server) setupAuth() error {
	sec := s.cfg.Security
	s.roles = principal.NewRoleComputer(sec.AdminGroups...)

	var resolvers []principal.Resolver
	if len(sec.LocalUsers) > 0 {
		resolvers = append(resolvers, principal.NewLocalResolver(sec.LocalUsers))
	}
	if s.directory != nil {
		resolvers = append(resolvers, principal.NewDirectoryResolver(s.directory))
	}
	if sec.JWTEnabled {
		jr, err := principal.NewJWTResolver(sec.JWT, s.logger)
		if err != nil {
			return fmt.Errorf("jwt resolver: %w", err)
		}
		resolvers = append(resolvers, jr)
	}
	if sec.OAuth.BaseURL != "" {
		resolvers = append(resolvers, principal.NewOAuthResolver(sec.OAuth, nil))
	}
	s.resolver = principal.NewChain(s.logger, resolvers...)

	engine := authz.NewEngine(s.namespaces, s.bindings, s.logger)
	if s.cfg.Cache.Enabled {
		cached := authz.NewCachedEngine(engine, s.cfg.Cache.MaxSize, s.cfg.Cache.TTL)
		s.repo.OnChange(cached.Invalidate)
		s.authorizer = cached
	} else {
		s.authorizer = engine
	}
	s.logger.Info("authentication configured",
		"strategies", len(resolvers),
		"trustedHeaders", sec.TrustedHeaders,
		"decisionCache", s.cfg.Cache.Enabled)
	return nil
}

func (s *Server) setupProxy() error {
	clusters, err := proxy.NewRegistry(s.cfg.Clusters)
	if err != nil {
		return err
	}
	s.clusters = clusters
	s.proxySecret = proxy.NewSecret()

	opts := []proxy.Option{proxy.WithLogger(s.logger), proxy.WithRecorder(s.metrics)}
	if s.transport != nil {
		opts = append(opts, proxy.WithTransport(s.transport))
	}
	s.proxy = proxy.NewHandler(clusters, s.proxySecret, opts...)
	if s.connectors == nil {
		s.connectors = proxy.NewClient(s.cfg.Server.SelfURL, s.proxySecret, nil)
	}
	for _, c := range s.cfg.Clusters {
		s.logger.Info("kafka cluster registered", "cluster", c)
	}
	return nil
}

func (s *Server) setupAudit() error {
	ac := s.cfg.Audit
	s.ring = audit.NewRingBuffer(ac.RingSize)
	if !ac.Enabled {
		s.logger.Info("audit disabled")
		return nil
	}

	listeners := []audit.Listener{s.ring}
	if ac.Has(audit.ListenerConsole) {
		listeners = append(listeners, audit.NewConsoleListener(s.logger))
	}
	if ac.Has(audit.ListenerDatabase) {
		if s.db == nil {
			s.logger.Warn("database audit listener needs a SQL store backend, skipping")
		} else {
			s.gormAudit = audit.NewGormListener(s.db)
			listeners = append(listeners, s.gormAudit)
		}
	}
	if ac.Has(audit.ListenerKafka) {
		client, err := audit.NewKafkaClient(ac.KafkaBrokers, ac.KafkaTopic)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func() error { client.Close(); return nil })
		listeners = append(listeners, audit.NewKafkaListener(client, ac.KafkaTopic))
	}
	if ac.Has(audit.ListenerRedis) {
		if ac.RedisAddr == "" {
			return errors.New("redis audit listener: redis-addr is required")
		}
		client := redis.NewClient(&redis.Options{Addr: ac.RedisAddr})
		s.closers = append(s.closers, client.Close)
		listeners = append(listeners, audit.NewRedisListener(client, ac.RedisStream, ac.RedisMaxLen))
	}
	listeners = append(listeners, s.extraAudit...)

	s.sink = audit.NewSink(s.logger, ac.QueueSize, listeners, audit.WithDropRecorder(s.metrics))
	names := make([]string, 0, len(listeners))
	for _, l := range listeners {
		names = append(names, l.Name())
	}
	s.logger.Info("audit sink started", "listeners", names)
	return nil
}

func (s *Server) setupApply() {
	s.quotas = quota.NewService(s.repo, store.NewQuotas(s.repo),
		quota.WithDefaults(s.cfg.Quota.Defaults),
		quota.WithEstimator(quota.RetentionEstimator{DefaultBytes: s.cfg.Quota.DefaultRetentionBytes}),
		quota.WithLogger(s.logger),
	)
	matcher := acl.NewMatcher(s.entries)

	opts := []apply.Option{apply.WithRecorder(s.metrics), apply.WithLogger(s.logger), apply.WithClusters(s.clusters)}
	if s.sink != nil {
		opts = append(opts, apply.WithPublisher(s.sink))
	}
	s.ctrl = apply.NewController(s.repo, s.namespaces, matcher, acl.NewValidator(matcher, s.namespaces), s.quotas, opts...)
	s.handler = apply.NewHandler(s.ctrl, s.connectors, s.logger)
}

// Init migrates the SQL schema under the migration lock.
func (s *Server) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.migrationLocker.WithLock(ctx, func() error {
		if err := s.gormRepo.AutoMigrate(); err != nil {
			return fmt.Errorf("migrate resources: %w", err)
		}
		if err := audit.NewGormListener(s.db).AutoMigrate(); err != nil {
			return fmt.Errorf("migrate audit events: %w", err)
		}
		s.logger.Info("database schema migrated")
		return nil
	})
}

// Start launches the leader-only background loops and marks the server
// ready. The loops stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.leaderElector.Run(ctx, s.lead)
	}()
	s.ready.Store(true)
}

// lead runs while this replica holds leadership.
func (s *Server) lead(ctx context.Context) {
	if s.gormAudit == nil {
		return
	}
	audit.NewRetentionWorker(s.gormAudit, s.cfg.Audit.RetentionDays, s.logger).Run(ctx)
}

// Stop drains the audit sink and releases clients. Call it after the
// HTTP server has stopped accepting requests.
func (s *Server) Stop(ctx context.Context) error {
	s.ready.Store(false)
	var errs []error
	if s.sink != nil {
		if err := s.sink.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close audit sink: %w", err))
		}
	}
	errs = append(errs, s.closeAll())

	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

func (s *Server) closeAll() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// ProxySecret returns the secret internal callers must present.
func (s *Server) ProxySecret() string { return s.proxySecret }

// Repository returns the resource repository shared by every component.
func (s *Server) Repository() store.Repository { return s.repo }
