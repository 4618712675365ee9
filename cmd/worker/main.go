package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/proplio/api/internal/config"
	"github.com/proplio/api/services"
	"github.com/proplio/api/workers"
)

func main() {
	log.Println("Starting workers...")

	// Load Config
	configPath := os.Getenv("PROPLIO_CONFIG_PATH")

	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Database connection
	if config.App.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable (or config) is required")
	}

	pg, err := sql.Open("postgres", config.App.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	// Test database connection
	if err := pg.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Set timezone to UTC for consistent time handling
	if _, err := pg.Exec("SET TIME ZONE 'UTC'"); err != nil {
		log.Printf("Failed to set timezone to UTC: %v", err)
	} else {
		log.Println("  Set database timezone to UTC")
	}

	log.Println("  Connected to database successfully")

	// Initialize services
	pushService, _ := services.NewPushService(pg)
	notifier := services.NewNotifier(pg)
	taskService := services.NewTaskService(pg, notifier)

	// Initialize workers
	notificationWorker := workers.NewNotificationWorker(
		pg,
		pushService,
		time.Duration(config.App.Worker.PollIntervalSeconds)*time.Second,
		config.App.Worker.BatchSize,
	)
	taskWorker := workers.NewTaskWorker(taskService, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start workers in separate goroutines
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("Starting notification worker...")
		notificationWorker.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("Starting task worker...")
		taskWorker.Run(ctx)
	}()

	// Wait for interrupt signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	log.Println("Workers started successfully. Press Ctrl+C to stop.")
	<-c

	log.Println("Shutting down workers...")
	cancel()
	wg.Wait()
	log.Println("Workers stopped")
}
