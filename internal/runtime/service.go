package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	codecpkg "github.com/electsolve/outagewire/internal/runtime/codec"
	configpkg "github.com/electsolve/outagewire/internal/runtime/config"
	deliverypkg "github.com/electsolve/outagewire/internal/runtime/delivery"
	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	exchangepkg "github.com/electsolve/outagewire/internal/runtime/exchange"
	"github.com/electsolve/outagewire/internal/runtime/jsoncodec"
	loggingpkg "github.com/electsolve/outagewire/internal/runtime/logging"
	transportpkg "github.com/electsolve/outagewire/transport"
	_ "github.com/electsolve/outagewire/transport/transports"
)

const httpShutdownTimeout = 5 * time.Second

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to get the defaults.
type ServiceDependencies struct {
	// Transports resolves Config.PubSubSystem. Defaults to transport.DefaultRegistry.
	Transports *transportpkg.Registry
	// Codecs resolves Config.Codec and the content type of received messages.
	Codecs *codecpkg.Registry
	// MetricsRegisterer receives the Prometheus collectors when metrics are
	// enabled. If it is also a Gatherer it backs the /metrics endpoint.
	MetricsRegisterer prometheus.Registerer
	// Hooks run for every registered subscriber, before the registration hooks.
	Hooks deliverypkg.Hooks
}

// Service wires the transport, the outage channel, the codec and the
// subscriber delivery loops.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	exchange     *exchangepkg.Exchange
	channel      *exchangepkg.Channel
	capabilities transportpkg.Capabilities
	codecs       *codecpkg.Registry
	codec        codecpkg.Codec
	metrics      *Metrics
	hooks        deliverypkg.Hooks

	subscribers   map[string]*subscriberEntry
	subscribersMu sync.RWMutex
	started       bool

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type subscriberEntry struct {
	info SubscriberInfo
	loop *deliverypkg.Loop
}

// NewService constructs a Service and panics when it cannot. Register
// subscribers on the returned Service before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService constructs a Service. It validates conf, builds the
// transport and declares the configured channel.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	cfg := conf.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	log.Info("Creating outage service", loggingpkg.LogFields{
		"pubsub_system": cfg.PubSubSystem,
		"exchange":      cfg.ExchangeName,
		"config":        cfg.String(),
	})

	codecs := deps.Codecs
	if codecs == nil {
		codecs = codecpkg.DefaultRegistry()
	}
	c, err := codecs.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	registry := deps.Transports
	if registry == nil {
		registry = transportpkg.DefaultRegistry
	}
	t, err := registry.Build(ctx, &cfg, loggingpkg.NewWatermillAdapter(log))
	if err != nil {
		return nil, errspkg.NewTransportUnavailable("build", cfg.ExchangeName, err)
	}

	ex, err := exchangepkg.New(t, log)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	ch, err := ex.Declare(ctx, cfg.ExchangeName)
	if err != nil {
		_ = ex.Close()
		return nil, err
	}

	s := &Service{
		Conf:         &cfg,
		Logger:       log,
		exchange:     ex,
		channel:      ch,
		capabilities: registry.GetCapabilities(cfg.PubSubSystem),
		codecs:       codecs,
		codec:        c,
		metrics:      NewMetrics(deps.MetricsRegisterer),
		hooks:        deps.Hooks,
		subscribers:  make(map[string]*subscriberEntry),
		done:         make(chan struct{}),
	}

	if cfg.MetricsEnabled {
		if err := s.registerMetrics(deps.MetricsRegisterer); err != nil {
			_ = ex.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) registerMetrics(registerer prometheus.Registerer) error {
	if err := s.metrics.Register(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	metricsHandler := promhttp.Handler()
	if registerer != nil {
		if g, ok := registerer.(prometheus.Gatherer); ok {
			metricsHandler = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
		}
	}
	if s.Conf.MetricsPort > 0 {
		s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", metricsHandler)
		s.RegisterHTTPHandler(s.Conf.MetricsPort, "/api/subscribers", http.HandlerFunc(s.handleGetSubscribers))
	}
	return nil
}

// ExchangeName returns the name of the configured channel.
func (s *Service) ExchangeName() string { return s.channel.Name() }

// Codec returns the codec used by PublishBatch.
func (s *Service) Codec() codecpkg.Codec { return s.codec }

// Capabilities reports what the configured transport supports.
func (s *Service) Capabilities() transportpkg.Capabilities { return s.capabilities }

// Metrics returns the Prometheus collectors of the service.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Start runs every registered delivery loop and HTTP server until ctx is
// cancelled or Close is called. Loops run independently: one loop losing its
// subscription does not stop the others. Start returns once every loop has
// ended, with the first loop error. HTTP server failures are logged only.
func (s *Service) Start(ctx context.Context) error {
	s.subscribersMu.Lock()
	if s.started {
		s.subscribersMu.Unlock()
		return errspkg.ErrServiceStarted
	}
	s.started = true
	loops := make([]*deliverypkg.Loop, 0, len(s.subscribers))
	for _, entry := range s.subscribers {
		loops = append(loops, entry.loop)
	}
	s.subscribersMu.Unlock()

	var g errgroup.Group
	for _, loop := range loops {
		g.Go(func() error {
			err := loop.Run(ctx)
			if err != nil {
				s.Logger.Error("Delivery loop stopped", err, loggingpkg.LogFields{"subscriber": loop.Name})
			}
			return err
		})
	}

	serversCtx, stopServers := context.WithCancel(ctx)
	defer stopServers()
	servers := s.startHTTPServers(serversCtx)

	s.Logger.Info("Outage service started", loggingpkg.LogFields{
		"exchange":    s.channel.Name(),
		"subscribers": len(loops),
	})

	var err error
	if len(loops) > 0 {
		err = g.Wait()
	} else {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
	}
	stopServers()
	_ = servers.Wait()
	return err
}

// Close releases every binding, the transport and the HTTP servers. It is
// safe to call more than once.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.exchange.Close()
		s.Logger.Info("Outage service closed", loggingpkg.LogFields{"exchange": s.channel.Name()})
	})
	return s.closeErr
}

func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers(ctx context.Context) *errgroup.Group {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	ports := make([]int, 0, len(s.httpServers))
	for port := range s.httpServers {
		ports = append(ports, port)
	}
	sort.Ints(ports)

	var g errgroup.Group
	for _, port := range ports {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.httpServers[port],
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})

		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("HTTP server failed", err, loggingpkg.LogFields{"address": srv.Addr})
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-ctx.Done():
			case <-s.done:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.Logger.Error("HTTP server shutdown failed", err, loggingpkg.LogFields{"address": srv.Addr})
			}
			return nil
		})
	}
	return &g
}

func (s *Service) handleGetSubscribers(w http.ResponseWriter, r *http.Request) {
	data, err := jsoncodec.Marshal(s.Subscribers())
	if err != nil {
		s.Logger.Error("Failed to encode subscribers", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
