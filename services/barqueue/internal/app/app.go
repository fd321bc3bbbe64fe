package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/middleware"
	"github.com/appetiteclub/barqueue/pkg"
	"github.com/appetiteclub/barqueue/pkg/event"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/barqueue"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/catalog"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/config"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/decision"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/events"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/metrics"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/mongo"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

const (
	AppNamespace = "BARQUEUE"
	AppName      = "barqueue"
	AppVersion   = "0.1.0"
)

const (
	EventLogMongo     = "mongo"
	EventLogJetStream = "jetstream"
	EventLogAll       = "all"
	EventLogNone      = "none"

	defaultReplayWindow = 6 * time.Hour
)

// App encapsulates the bar queue service application
type App struct {
	config *apt.Config
	logger apt.Logger
	micro  *apt.Micro

	store     *mongo.Store
	publisher *pkg.NATSPublisher
	natsSub   *pkg.NATSSubscriber
	stream    *pkg.NATSStream
	eventLogs *mongo.EventLogRepo
}

func New(config *apt.Config, logger apt.Logger) (*App, error) {
	if config == nil {
		return nil, fmt.Errorf("%s: config is required", AppName)
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize connects infrastructure and wires every component into the micro runtime.
func (a *App) Initialize(ctx context.Context) error {
	a.store = mongo.NewStore(a.config, a.logger)
	configRepo := mongo.NewConfigRepo(a.store)

	natsURL := a.config.GetStringOrDef("nats.url", "nats://localhost:4222")

	var err error
	a.publisher, err = pkg.NewNATSPublisher(natsURL)
	if err != nil {
		return fmt.Errorf("cannot connect NATS publisher: %w", err)
	}
	a.natsSub, err = pkg.NewNATSSubscriber(natsURL, a.logger)
	if err != nil {
		return fmt.Errorf("cannot connect NATS subscriber: %w", err)
	}

	eventLog, err := a.setupEventLog(ctx, natsURL)
	if err != nil {
		return err
	}

	cat, err := a.setupCatalog()
	if err != nil {
		return err
	}

	registry := state.NewRegistry(state.RegistryOptions{
		ArrivalsWindow:    a.durationOrDef("engine.arrivals.window", state.DefaultArrivalsWindow),
		CompletedCapacity: a.intOrDef("engine.completed.capacity", state.DefaultCompletedCapacity),
	})

	processor := events.NewProcessor(registry, events.Options{
		Catalog:   cat,
		Tenant:    catalog.SeparatorTenant(a.config.GetStringOrDef("engine.tenant.separator", ":")),
		Log:       eventLog,
		Publisher: a.publisher,
		Logger:    a.logger,
		IOTimeout: a.durationOrDef("io.timeout", events.DefaultIOTimeout),
	})
	topic := a.config.GetStringOrDef("nats.topic.events", event.BarEventsTopic)
	subscriber := events.NewSubscriber(a.natsSub, processor, topic, a.logger)

	calc := metrics.NewCalculator(registry, metrics.CalculatorOptions{})
	configs := config.NewService(registry, configRepo, config.Options{
		Publisher: a.publisher,
		Logger:    a.logger,
	})
	monitor := metrics.NewMonitor(registry, calc, configs, metrics.MonitorOptions{
		Interval:  a.durationOrDef("guardrails.interval", metrics.DefaultMonitorInterval),
		Publisher: a.publisher,
		Logger:    a.logger,
	})

	handler := barqueue.NewHandler(barqueue.HandlerDeps{
		Registry:   registry,
		Processor:  processor,
		Calculator: calc,
		Engine:     decision.NewEngine(registry, calc, decision.Options{}),
		Planner:    decision.NewPlanner(registry, calc),
		Configs:    configs,
	}, a.config, a.logger)
	health := barqueue.NewHealthServer(AppName)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	// Order matters: persisted configs and replayed events land before live
	// ingestion starts.
	lifecycles := []interface{}{
		apt.LifecycleHooks{OnStart: a.store.Start, OnStop: a.store.Stop},
		apt.LifecycleHooks{OnStart: configRepo.Start},
	}
	if a.eventLogs != nil {
		lifecycles = append(lifecycles, apt.LifecycleHooks{OnStart: a.eventLogs.Start})
	}
	lifecycles = append(lifecycles,
		apt.LifecycleHooks{
			OnStart: func(ctx context.Context) error {
				n, err := configs.Warm(ctx)
				if err != nil {
					a.logger.Error("cannot warm engine configs", "error", err)
					return nil
				}
				a.logger.Info("engine configs loaded", "count", n)
				return nil
			},
		},
		apt.LifecycleHooks{OnStart: func(ctx context.Context) error {
			a.replay(ctx, processor)
			return nil
		}},
		subscriber,
		monitor,
		health,
		apt.LifecycleHooks{OnStop: a.closeTransport},
	)

	options := []apt.Option{
		apt.WithConfig(a.config),
		apt.WithLogger(a.logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithGRPCServerModules("grpc.port", health),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(AppName),
	}

	a.micro = apt.NewMicro(options...)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}

// Shutdown releases connections when Run never got to start the lifecycle.
func (a *App) Shutdown(ctx context.Context) error {
	if a.store != nil {
		_ = a.store.Stop(ctx)
	}
	return a.closeTransport(ctx)
}

func (a *App) setupEventLog(ctx context.Context, natsURL string) (events.EventLog, error) {
	backend := a.config.GetStringOrDef("eventlog.backend", EventLogMongo)
	switch backend {
	case EventLogNone:
		return events.NopLog{}, nil

	case EventLogMongo:
		a.eventLogs = mongo.NewEventLogRepo(a.store)
		return a.eventLogs, nil

	case EventLogJetStream:
		if err := a.openStream(ctx, natsURL); err != nil {
			return nil, err
		}
		return events.NewStreamLog(a.stream, a.stream.Topic()), nil

	case EventLogAll:
		a.eventLogs = mongo.NewEventLogRepo(a.store)
		if err := a.openStream(ctx, natsURL); err != nil {
			return nil, err
		}
		return events.MultiLog{a.eventLogs, events.NewStreamLog(a.stream, a.stream.Topic())}, nil
	}
	return nil, fmt.Errorf("unknown eventlog.backend %q", backend)
}

func (a *App) openStream(ctx context.Context, natsURL string) error {
	stream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
		URL:          natsURL,
		StreamName:   a.config.GetStringOrDef("nats.stream.name", "BAR_EVENTS"),
		Topic:        event.BarEventLogTopic,
		ConsumerName: AppName + "-events",
		MaxAge:       a.durationOrDef("nats.stream.maxage", 24*time.Hour),
		ReplayWindow: a.durationOrDef("eventlog.replay.window", defaultReplayWindow),
	})
	if err != nil {
		return fmt.Errorf("cannot open event log stream: %w", err)
	}
	a.stream = stream
	a.logger.Info("NATS stream initialized for the raw event log")
	return nil
}

func (a *App) setupCatalog() (catalog.Catalog, error) {
	if path, ok := a.config.GetString("catalog.file"); ok && path != "" {
		static, err := catalog.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot load catalog file: %w", err)
		}
		a.logger.Info("catalog loaded from file", "path", path, "tenants", len(static))
		return static, nil
	}
	if url, ok := a.config.GetString("catalog.url"); ok && url != "" {
		ttl := a.durationOrDef("catalog.ttl", 5*time.Minute)
		return catalog.NewServiceCatalog(apt.NewServiceClient(url), ttl, a.logger), nil
	}
	a.logger.Info("no catalog configured, items stay unclassified")
	return catalog.Static{}, nil
}

func (a *App) replay(ctx context.Context, processor *events.Processor) {
	if a.config.GetStringOrDef("eventlog.replay", "false") != "true" {
		return
	}
	limit := a.intOrDef("eventlog.replay.limit", events.DefaultReplayLimit)

	switch {
	case a.stream != nil:
		var stream aptevents.StreamConsumer = a.stream
		if _, err := processor.Replay(ctx, stream, limit); err != nil {
			a.logger.Error("event log replay failed", "error", err)
		}

	case a.eventLogs != nil:
		from := time.Now().UTC().Add(-a.durationOrDef("eventlog.replay.window", defaultReplayWindow))
		envs, err := a.eventLogs.Since(ctx, from, int64(limit))
		if err != nil {
			a.logger.Error("event log replay failed", "error", err)
			return
		}
		res := processor.ReplayEnvelopes(ctx, envs)
		a.logger.Info("event log replayed", "events", len(envs), "accepted", res.Accepted, "rejected", res.Rejected)
	}
}

func (a *App) closeTransport(context.Context) error {
	if a.natsSub != nil {
		_ = a.natsSub.Close()
	}
	if a.stream != nil {
		_ = a.stream.Close()
	}
	if a.publisher != nil {
		return a.publisher.Close()
	}
	return nil
}

func (a *App) durationOrDef(key string, def time.Duration) time.Duration {
	raw, ok := a.config.GetString(key)
	if !ok || raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		a.logger.Error("invalid duration, using default", "key", key, "value", raw, "default", def.String())
		return def
	}
	return d
}

func (a *App) intOrDef(key string, def int) int {
	raw, ok := a.config.GetString(key)
	if !ok || raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		a.logger.Error("invalid integer, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return n
}
