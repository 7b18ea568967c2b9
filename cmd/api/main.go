package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/jatango/liveshop/internal/catalog"
	"github.com/jatango/liveshop/internal/checkout"
	"github.com/jatango/liveshop/internal/config"
	"github.com/jatango/liveshop/internal/httpx"
	kafkax "github.com/jatango/liveshop/internal/kafka"
	"github.com/jatango/liveshop/internal/live"
	"github.com/jatango/liveshop/internal/notify"
	"github.com/jatango/liveshop/internal/orders"
	"github.com/jatango/liveshop/internal/postgres"
	"github.com/jatango/liveshop/internal/redisx"
	"github.com/jatango/liveshop/internal/reservation"
	"github.com/jatango/liveshop/internal/shipping"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taxRate, err := decimal.NewFromString(cfg.SalesTaxRate)
	if err != nil {
		log.Fatalf("parse SALES_TAX_RATE: %v", err)
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.RunMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for live events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, live.TopicEvents, 1024)
	prod.Start(ctx)

	// Repos
	catalogRepo := &catalog.Repo{DB: db}
	holdStore := &reservation.Store{DB: db}
	ledger := &reservation.Ledger{DB: db}
	orderRepo := &orders.Repo{DB: db}
	parcelRepo := &shipping.Repo{DB: db}

	// Services
	orchestrator := &checkout.Orchestrator{
		Orders:      orderRepo,
		Catalog:     catalogRepo,
		Holds:       holdStore,
		Provider:    checkout.NewDevProvider(),
		Producer:    prod,
		Redis:       rdb,
		TaxRate:     taxRate,
		MinCents:    cfg.MinTotalCents,
		ServiceName: cfg.ServiceName,
	}
	planner := &shipping.Planner{
		Parcels:     parcelRepo,
		Orders:      orderRepo,
		Sellers:     catalogRepo,
		Carrier:     shipping.NewDevCarrier(),
		Producer:    prod,
		ServiceName: cfg.ServiceName,
	}

	// Live push: consume the events topic back into this instance's registry.
	registry := notify.NewRegistry(16)
	defer registry.Close()
	bridge := &notify.Bridge{Registry: registry, Redis: rdb, Consumer: cfg.ServiceName}
	consumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName+"-push", live.TopicEvents, 4)
	go func() {
		if err := consumer.Start(ctx, bridge.Handle); err != nil {
			log.Printf("event consumer: %v", err)
		}
	}()

	// Handlers
	router := httpx.NewRouter()
	(&httpx.CatalogHandler{Catalog: catalogRepo, Ledger: ledger}).Register(router)
	(&httpx.ReservationHandler{Store: holdStore, Ledger: ledger, Producer: prod, Service: cfg.ServiceName, TTL: cfg.ReservationTTL}).Register(router)
	(&httpx.CheckoutHandler{Orchestrator: orchestrator, Orders: orderRepo, Redis: rdb}).Register(router)
	(&httpx.ShippingHandler{Planner: planner, Parcels: parcelRepo, Orders: orderRepo}).Register(router)
	(&httpx.EventsHandler{Registry: registry}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	registry.Close() // unblock open event streams
	prod.Close()     // close inbox -> flush & close writer
	cancel()         // stop producer loop and consumer
	prod.WaitClosed()
}
