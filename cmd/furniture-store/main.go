// Package main запускает HTTP-сервер магазина мебели.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/furniture-store/internal/catalog"
	"github.com/mmeshcher/furniture-store/internal/config"
	"github.com/mmeshcher/furniture-store/internal/events"
	"github.com/mmeshcher/furniture-store/internal/handler"
	"github.com/mmeshcher/furniture-store/internal/repository"
	"github.com/mmeshcher/furniture-store/internal/service"
)

// storage - хранилище, которым пользуются сервисы заказов и купонов.
type storage interface {
	service.OrderRepository
	service.CouponRepository
	service.InventoryLedger
	service.UnitOfWork
	service.OrderNumberGenerator
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var store storage
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI, logger)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer repo.Close()
		store = repo
	} else {
		repo := repository.NewMemoryRepository()
		seeded := repo.SeedProducts(repository.SampleProducts())
		sugar.Infow("using in-memory storage", "products", seeded)
		store = repo
	}

	deps := service.OrderServiceDeps{
		Orders:           store,
		Coupons:          store,
		Inventory:        store,
		UnitOfWork:       store,
		Numbers:          store,
		Logger:           logger,
		DeliveryLeadTime: cfg.DeliveryLeadTime(),
	}

	if cfg.CatalogServiceAddress != "" {
		deps.Inventory = catalog.NewClient(cfg.CatalogServiceAddress, logger)
		deps.ExternalInventory = true
		sugar.Infow("using remote product catalog", "addr", cfg.CatalogServiceAddress)
	}

	if cfg.KafkaBrokers != "" {
		publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			BootstrapServers: cfg.KafkaBrokers,
			ClientID:         "furniture-store",
			Topic:            cfg.OrderEventsTopic,
		}, logger)
		if err != nil {
			sugar.Fatalw("kafka publisher initialization error", "error", err.Error())
		}
		defer publisher.Close()
		deps.Events = publisher
	}

	orders, err := service.NewOrderService(deps)
	if err != nil {
		sugar.Fatalw("order service initialization error", "error", err.Error())
	}
	coupons := service.NewCouponService(store, logger, nil)

	h := handler.NewHandler(orders, coupons, logger)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting furniture store server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
