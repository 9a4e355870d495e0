package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/unifarma/shipping-service/internal/app"
	"github.com/unifarma/shipping-service/internal/carrier"
	"github.com/unifarma/shipping-service/internal/carrier/smsa"
	"github.com/unifarma/shipping-service/internal/config"
	"github.com/unifarma/shipping-service/internal/handler"
	"github.com/unifarma/shipping-service/internal/normalize"
	"github.com/unifarma/shipping-service/internal/postgres"
	"github.com/unifarma/shipping-service/internal/repo"
	"github.com/unifarma/shipping-service/internal/selector"
	"github.com/unifarma/shipping-service/internal/service"
	"github.com/unifarma/shipping-service/pkg/cache"
	"github.com/unifarma/shipping-service/pkg/trm"

	"github.com/joho/godotenv"
)

// @title           Shipping Service API
// @version         1.0
// @description     CRM deal intake, carrier dispatch and tracking
func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	shippingRepo := repo.NewPostgresRepo(db)
	txManager := trm.NewManager(db)
	mappingCache := cache.NewLRUCache(conf.Shipping.MappingCacheSize, conf.Shipping.MappingCacheTTL)

	resolver := normalize.NewResolver(logger, shippingRepo, mappingCache)
	accountSelector := selector.New(logger, shippingRepo, conf.Shipping.CRMCarrierField, conf.Shipping.HomeCountry)

	registry := carrier.NewRegistry()
	registry.Register("smsa", smsa.New(logger, conf.SMSA, resolver))

	dispatchService := service.NewDispatchService(logger, shippingRepo, registry, txManager)

	publisher := handler.NewKafkaPublisher(conf.Kafka)
	defer publisher.Close()

	crmService := service.NewCRMService(logger, shippingRepo, accountSelector, publisher, txManager,
		conf.Shipping.CRMCarrierField, conf.Shipping.CRMShippingStage)

	kafkaHandler := handler.NewKafkaHandler(logger, conf.Kafka, crmService)
	httpHandler := handler.NewHTTPHandler(logger, shippingRepo, dispatchService)
	webhookHandler := handler.NewWebhookHandler(logger, crmService)

	application := app.New(logger, conf)

	application.SetHTTPHandlers(httpHandler, webhookHandler)
	application.SetConsumers(kafkaHandler)
	application.SetSweeps(
		app.Sweep{
			Name:     "dispatch",
			Interval: conf.Shipping.DispatchSweepInterval,
			Run:      dispatchService.ProcessNewOrders,
		},
		app.Sweep{
			Name:     "tracking",
			Interval: conf.Shipping.TrackingSweepInterval,
			Run:      dispatchService.RefreshActiveShipments,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	mappingCache.StartJanitor(ctx)

	application.Start(ctx)
	<-ctx.Done()
	application.Stop()
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
