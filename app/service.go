// Package app wires the configuration into a running service: storage,
// notifier, metrics sinks, the dispatch coordinator, the escrow ledger, the
// dispute resolver and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/soundbridge/gigdispatch/api"
	"github.com/soundbridge/gigdispatch/config"
	"github.com/soundbridge/gigdispatch/core/availability"
	"github.com/soundbridge/gigdispatch/core/dispatch"
	"github.com/soundbridge/gigdispatch/core/dispute"
	"github.com/soundbridge/gigdispatch/core/ledger"
	"github.com/soundbridge/gigdispatch/core/match"
	coremetrics "github.com/soundbridge/gigdispatch/core/metrics"
	"github.com/soundbridge/gigdispatch/core/notify"
	"github.com/soundbridge/gigdispatch/core/payment"
	"github.com/soundbridge/gigdispatch/core/rating"
	"github.com/soundbridge/gigdispatch/infra/logger"
	"github.com/soundbridge/gigdispatch/infra/metrics"
	"github.com/soundbridge/gigdispatch/infra/mqtt"
	"github.com/soundbridge/gigdispatch/infra/store"
	"github.com/soundbridge/gigdispatch/internal/eventbus"
	"github.com/soundbridge/gigdispatch/jobs/sweeper"
)

// Service orchestrates the dispatch stack and the HTTP server.
type Service struct {
	Coordinator *dispatch.Coordinator
	Ledger      *ledger.Ledger
	Resolver    *dispute.Resolver
	Registry    *availability.Registry
	Ratings     *rating.Service

	server  *api.Server
	sweeper *sweeper.Sweeper
	bus     eventbus.EventBus
	sink    coremetrics.MetricsSink
	log     logger.Logger
	cfg     *config.Config
	closers []func()
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	svc := &Service{log: logg, cfg: cfg}

	var gigStore dispatch.GigStore
	var journal ledger.Journal
	switch cfg.Storage.Backend {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		svc.closers = append(svc.closers, func() { _ = s.Close() })
		gigStore = s
		journal = s.Journal()
	default:
		gigStore = dispatch.NewMemoryStore()
		journal = ledger.NewMemoryJournal()
	}

	var notifier notify.Notifier
	if cfg.Notifier.Backend == "mqtt" {
		n, err := mqtt.NewPahoNotifier(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		svc.closers = append(svc.closers, n.Disconnect)
		notifier = n
	} else {
		notifier = notify.NewMockNotifier()
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}
	svc.sink = sink

	bus := eventbus.New()
	svc.bus = bus

	registry, err := availability.NewRegistry(availability.NewMemoryStore(), cfg.Availability, logger.New("availability"))
	if err != nil {
		return nil, fmt.Errorf("availability registry: %w", err)
	}
	ratings, err := rating.NewService(rating.NewMemoryStore())
	if err != nil {
		return nil, fmt.Errorf("rating service: %w", err)
	}
	matcher := match.New(registry, ratings)

	coordinator, err := dispatch.NewCoordinator(gigStore, registry, matcher, notifier, cfg.Dispatch, sink, bus, logger.New("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("dispatch coordinator: %w", err)
	}

	ldg, err := ledger.New(gigStore, journal, payment.NewLogGateway(logger.New("payment")), cfg.Fees, sink, bus, logger.New("ledger"))
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	ldg.SetNotifier(notifier)

	disputes := dispute.NewMemoryStore()
	resolver, err := dispute.NewResolver(disputes, gigStore, ldg, bus, logger.New("dispute"))
	if err != nil {
		return nil, fmt.Errorf("dispute resolver: %w", err)
	}
	resolver.SetNotifier(notifier)
	coordinator.SetDisputeChecker(disputes)
	ldg.SetDisputeChecker(disputes)

	ttl := 24 * time.Hour
	if cfg.Auth.TokenTTL != "" {
		d, err := time.ParseDuration(cfg.Auth.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("auth token ttl: %w", err)
		}
		ttl = d
	}
	tokens := api.NewTokenManager(cfg.Auth.Secret, ttl)
	server, err := api.NewServer(coordinator, registry, ldg, resolver, ratings, tokens, logger.New("api"))
	if err != nil {
		return nil, fmt.Errorf("api server: %w", err)
	}

	sw, err := sweeper.New(coordinator, registry, cfg.Sweeper, logger.New("sweeper"))
	if err != nil {
		return nil, fmt.Errorf("sweeper: %w", err)
	}

	svc.Coordinator = coordinator
	svc.Ledger = ldg
	svc.Resolver = resolver
	svc.Registry = registry
	svc.Ratings = ratings
	svc.server = server
	svc.sweeper = sw
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	go s.sweeper.Run(ctx)
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.server.Router(s.cfg.Server.Production)}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.log.Infof("listening on %s", s.cfg.Server.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	for _, c := range s.closers {
		c()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	return nil
}
