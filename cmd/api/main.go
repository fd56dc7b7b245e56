package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qhosting/provisioning-service/internal/client"
	"github.com/qhosting/provisioning-service/internal/config"
	"github.com/qhosting/provisioning-service/internal/db"
	"github.com/qhosting/provisioning-service/internal/http"
	"github.com/qhosting/provisioning-service/internal/queue"
	"github.com/qhosting/provisioning-service/internal/repository"
	"github.com/qhosting/provisioning-service/internal/service"
	"github.com/qhosting/provisioning-service/internal/worker"
)

func main() {
	log.Println("Starting Provisioning Service...")

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	pool, err := db.NewPool(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Initialize Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Initialize repositories
	serviceRepo := repository.NewServiceRepository(pool)
	planRepo := repository.NewPlanRepository(pool)
	nodeRepo := repository.NewNodeRepository(pool)
	logRepo := repository.NewLogRepository(pool)

	// Initialize clients
	panelClient, err := client.NewPanelClient(cfg.Panel)
	if err != nil {
		log.Fatalf("Failed to initialize panel client: %v", err)
	}

	hubClient := client.NewHubClient(cfg.Hub.URL, cfg.Hub.SharedSecret)

	// Initialize queue
	jobQueue := queue.NewRedisQueue(redisClient, cfg.Queue.MaxAttempts)
	jobQueue.StartSweeper(time.Minute)

	// Initialize services
	resolver := service.NewResolver(planRepo, nodeRepo)
	orderService := service.NewOrderService(resolver, serviceRepo, logRepo, jobQueue, cfg.Panel.ContactEmail)
	catalogService := service.NewCatalogService(planRepo, nodeRepo, nodeRepo)

	// Initialize workers
	provisionWorker := worker.New(jobQueue, serviceRepo, panelClient, logRepo, hubClient, cfg.Queue.Workers)
	provisionWorker.Start()

	// Initialize HTTP server
	handler := http.NewHandler(orderService, catalogService)
	server := http.NewServer(cfg, handler, jobQueue)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	provisionWorker.Stop()
	jobQueue.StopSweeper()

	log.Println("Server exited")
}
