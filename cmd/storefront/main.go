package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/dashboard"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/messaging"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/telemetry"
	"github.com/example/storefront/pkg/uploads"
	"github.com/example/storefront/pkg/workflow"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Storefront stopped", zap.Error(err))
	}
	logger.Info("Storefront stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.String("address", cfg.Server.Addr()))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Server.Name, cfg.Telemetry.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	services := gateway.Services{}
	if cfg.Telemetry.MetricsEnabled {
		handler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.Server.Name, cfg.Telemetry.ServiceVersion)
		if err != nil {
			return err
		}
		defer func() { _ = shutdownMeter(context.Background()) }()
		services.Metrics = handler
	}

	mongo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() { _ = mongo.Close(context.Background()) }()
	if err := mongo.EnsureIndexes(ctx); err != nil {
		return err
	}

	redis := repository.NewRedisRepository(&cfg.Redis)
	defer redis.Close()
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed, product cache will fall through", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	products := repository.NewCachedProductStore(mongo.Products(), redis, logger)

	notifier, err := notify.NewNotifier(logger)
	if err != nil {
		return err
	}
	defer notifier.Stop()

	publishers := []workflow.Publisher{mongo.Audit(), notifier}
	if cfg.Kafka.Enabled() {
		producer := messaging.NewProducer(&cfg.Kafka, logger)
		defer producer.Close()
		publishers = append(publishers, producer)
	}

	images, err := uploads.NewImageStore(&cfg.Uploads, logger)
	if err != nil {
		return err
	}

	services.Catalog = catalog.NewService(products, logger)
	services.Orders = workflow.NewEngine(products, mongo.Orders(), mongo.OrderLines(), logger, publishers...)
	services.Dashboard = dashboard.NewService(mongo.Orders(), products, cfg.Dashboard.LowStockThreshold, logger)
	services.Auth = auth.NewService(mongo.Admins(), redis, auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), logger)
	services.Images = images
	services.History = mongo.Audit()

	gw := gateway.NewGateway(cfg, logger, services)

	if cfg.Health.Port > 0 {
		hs := grpc.NewHealthServer(map[string]grpc.Pinger{
			"mongodb": mongo,
			"redis":   redis,
		}, cfg.Health.Interval, logger)
		if err := hs.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Health.Port)); err != nil {
			return err
		}
		defer hs.Stop()
		go hs.Run(ctx)
	}

	if cfg.Etcd.Enabled() {
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			defer sd.Close()
			instance := &discovery.ServiceInstance{Name: cfg.Server.Name, Host: cfg.Server.Host, Port: cfg.Server.Port}
			if err := sd.Register(ctx, instance); err != nil {
				logger.Warn("Failed to register service", zap.Error(err))
			} else {
				defer func() {
					if err := sd.Deregister(context.Background(), instance); err != nil {
						logger.Error("Failed to deregister service", zap.Error(err))
					}
				}()
			}
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- gw.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return gw.Shutdown(shutdownCtx)
}
