// Package app assembles the application: configuration, logging, storage,
// the change bus, and the services behind the HTTP surface.
package app

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/ports"
	"github.com/teamthinqers/thinkersweb-backend-sub006/application/services"
	"github.com/teamthinqers/thinkersweb-backend-sub006/infrastructure/config"
	"github.com/teamthinqers/thinkersweb-backend-sub006/infrastructure/messaging"
	"github.com/teamthinqers/thinkersweb-backend-sub006/infrastructure/messaging/eventbridge"
	ddbstore "github.com/teamthinqers/thinkersweb-backend-sub006/infrastructure/persistence/dynamodb"
	"github.com/teamthinqers/thinkersweb-backend-sub006/infrastructure/persistence/memory"
	"github.com/teamthinqers/thinkersweb-backend-sub006/interfaces/http/rest"
	"github.com/teamthinqers/thinkersweb-backend-sub006/interfaces/http/rest/handlers"
	"github.com/teamthinqers/thinkersweb-backend-sub006/interfaces/http/rest/middleware"
	"github.com/teamthinqers/thinkersweb-backend-sub006/interfaces/sse"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/observability"
)

// Container holds the assembled application dependencies.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Store     ports.HierarchyStore
	Hub       *sse.Hub
	Publisher ports.EventPublisher

	MappingService  *services.MappingService
	PositionService *services.PositionService
	StatsService    *services.StatsService

	Router *rest.Router

	watcher        *config.Watcher
	tracerProvider *observability.TracerProvider
}

// NewContainer wires the application from configuration.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &Container{Config: cfg, Logger: logger}

	if cfg.EnableTracing {
		tp, err := observability.InitTracing(observability.TracingConfig{
			ServiceName: "dotspark",
			Environment: cfg.Environment,
			Endpoint:    cfg.TracingEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		c.tracerProvider = tp
	}

	if cfg.RuntimeConfigPath != "" {
		watcher, err := config.NewWatcher(cfg.RuntimeConfigPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start runtime config watcher: %w", err)
		}
		watcher.Start()
		c.watcher = watcher
	}

	if err := c.buildStore(ctx); err != nil {
		return nil, err
	}

	c.Hub = sse.NewHub(logger, cfg.SSEHeartbeatInterval)
	if err := c.buildPublisher(ctx); err != nil {
		return nil, err
	}

	// Runtime-tunable limits are passed as closures; with a watcher present
	// a file reload reaches every subsequent call.
	padding := func() float64 { return cfg.CollisionPadding }
	maxBatch := func() int { return cfg.MaxPositionBatch }
	maxConnections := func() int { return cfg.MaxConnectionsPerUser }
	statsTTL := func() time.Duration { return cfg.StatsCacheTTL }
	if c.watcher != nil {
		padding = c.watcher.CollisionPadding
		maxBatch = c.watcher.MaxPositionBatch
		maxConnections = c.watcher.MaxConnectionsPerUser
		statsTTL = c.watcher.StatsCacheTTL
	}

	c.MappingService = services.NewMappingService(c.Store, c.Publisher, logger)
	c.PositionService = services.NewPositionService(c.Store, c.Publisher, logger, services.PositionConfig{
		Padding:  padding,
		MaxBatch: maxBatch,
	})
	c.StatsService = services.NewStatsService(c.Store, logger, statsTTL)
	if c.watcher != nil {
		// Snapshots cached under the previous TTL must not outlive a reload.
		c.watcher.OnChange(func(*config.RuntimeConfig) { c.StatsService.InvalidateAll() })
	}

	eventServer := sse.NewServer(c.Hub, logger, maxConnections)
	c.Router = rest.NewRouter(
		rest.Config{
			Auth: middleware.AuthConfig{
				JWTSecret:       cfg.JWTSecret,
				AllowUserHeader: cfg.AllowUserHeader && cfg.IsDevelopment(),
			},
			AllowedOrigins: cfg.AllowedOrigins,
		},
		logger,
		handlers.NewGridHandler(c.Store, logger),
		handlers.NewMappingHandler(c.MappingService, logger),
		handlers.NewPositionHandler(c.PositionService, logger),
		handlers.NewStatsHandler(c.StatsService, logger),
		eventServer,
	)
	return c, nil
}

// Shutdown releases container-held resources. The hub shuts down with the
// context passed to its Run loop, not here.
func (c *Container) Shutdown(ctx context.Context) {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	if c.tracerProvider != nil {
		if err := c.tracerProvider.Shutdown(ctx); err != nil {
			c.Logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
}

func (c *Container) buildStore(ctx context.Context) error {
	switch c.Config.Persistence {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Config.AWSRegion))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		c.Store = ddbstore.NewStore(awsdynamodb.NewFromConfig(awsCfg), c.Config.DynamoDBTable, c.Logger)
		c.Logger.Info("Using DynamoDB hierarchy store",
			zap.String("table", c.Config.DynamoDBTable),
			zap.String("region", c.Config.AWSRegion),
		)
	default:
		c.Store = memory.NewStore()
		c.Logger.Info("Using in-memory hierarchy store")
	}
	return nil
}

func (c *Container) buildPublisher(ctx context.Context) error {
	var remote ports.EventPublisher
	if c.Config.EventBridgeEnabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Config.AWSRegion))
		if err != nil {
			return fmt.Errorf("failed to load AWS config for EventBridge: %w", err)
		}
		remote = eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), c.Config.EventBusName, c.Logger)
		c.Logger.Info("EventBridge publishing enabled", zap.String("eventBus", c.Config.EventBusName))
	}
	c.Publisher = messaging.NewDispatcher(c.Hub, remote, c.Logger)
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = level
	}
	return zapCfg.Build()
}
