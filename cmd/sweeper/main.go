package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jatango/liveshop/internal/config"
	kafkax "github.com/jatango/liveshop/internal/kafka"
	"github.com/jatango/liveshop/internal/live"
	"github.com/jatango/liveshop/internal/postgres"
	"github.com/jatango/liveshop/internal/reservation"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, live.TopicEvents, 256)
	prod.Start(ctx)

	sweeper := &reservation.Sweeper{
		Store:       &reservation.Store{DB: db},
		Producer:    prod,
		Interval:    cfg.SweepInterval,
		ServiceName: cfg.ServiceName + "-sweeper",
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("sweeper running every %s", cfg.SweepInterval)
		sweeper.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	// Stop the sweep loop before closing the producer so an in-flight sweep
	// cannot publish into a closed inbox.
	cancel()
	<-done
	prod.Close()
	prod.WaitClosed()
}
