package backend

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/inkwell-app/inkwell/backend/journal"
	"github.com/inkwell-app/inkwell/backend/mood"
	"github.com/inkwell-app/inkwell/backend/queue"
	"github.com/inkwell-app/inkwell/backend/reconcile"
	"github.com/inkwell-app/inkwell/backend/server"
	cache "github.com/inkwell-app/inkwell/backend/storage/cache"
	storage "github.com/inkwell-app/inkwell/backend/storage/persistent"
	"github.com/inkwell-app/inkwell/backend/streak"
	"github.com/inkwell-app/inkwell/backend/timezone"
	"github.com/inkwell-app/inkwell/lib/timeutil"
	"github.com/joho/godotenv"
)

// RunBackend is the main function that sets up and runs the backend server.
func RunBackend() {

	// Load the .env file.
	err := godotenv.Load("backend/.env")
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables from the .env file using os.Getenv.
	signingKey := os.Getenv("JWT_SIGNING_KEY") // JWT signing key for token validation
	serverURL := os.Getenv("SERVER_URL")       // The URL where the server is running
	dbURI := os.Getenv("MONGODB_URI")          // MongoDB database URI
	dbName := os.Getenv("DB_NAME")             // The name of the MongoDB database
	redisURL := os.Getenv("REDIS_URL")         // The Redis URL for caching
	rabbitMQURL := os.Getenv("RABBITMQ_URL")   // The RabbitMQ broker; empty runs the in-process queue
	numProducers := 1
	numConsumers := 2
	ctx := context.Background()

	store, err := storage.NewStorage(dbName, dbURI)
	if err != nil {
		log.Fatalf("error initializing storage: %v", err)
	}

	c, err := cache.NewCache(redisURL)
	if err != nil {
		log.Fatalf("error connecting to cache: %v", err)
	}

	clock := timeutil.RealClock{}
	zones := timezone.NewResolver(store, c)
	tracker := streak.NewTracker(store)
	aggregator := mood.NewAggregator(store, store, zones, clock)

	// The recompute queue backs the fire-and-forget side of entry writes.
	// Without a broker the in-process scheduler covers single-binary runs.
	var scheduler journal.RecomputeScheduler
	if rabbitMQURL != "" {
		recomputeQueue, err := queue.BuildRecomputeQueue(rabbitMQURL, numProducers, numConsumers, c, aggregator)
		if err != nil {
			log.Fatalf("error initializing recompute queue: %v", err)
		}
		recomputeQueue.StartConsumers(ctx)
		scheduler = queue.NewAMQPScheduler(recomputeQueue)
	} else {
		memScheduler := queue.NewMemoryScheduler(aggregator)
		memScheduler.Start(ctx)
		scheduler = memScheduler
	}

	journals := journal.NewService(store, tracker, scheduler, zones, clock)

	// Nightly sweep healing yesterday's mood points from the entries.
	reconciler := reconcile.NewReconciler(store, scheduler, zones, clock)
	if err := reconciler.Start(ctx); err != nil {
		log.Fatalf("error starting reconciler: %v", err)
	}

	srv := &server.Server{
		Journals: journals,
		Moods:    aggregator,
		Streaks:  tracker,
	}
	go func() {
		if err := srv.Start(serverURL, signingKey); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	// Setting up the signal interrupt handler to gracefully shut down.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigs
	fmt.Println()
	fmt.Println(sig)

	reconciler.Stop()
	if err := store.Disconnect(); err != nil {
		log.Printf("error disconnecting storage: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		log.Printf("error disconnecting cache: %v", err)
	}
}
