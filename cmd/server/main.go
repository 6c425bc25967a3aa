package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tyre-assistant/config"
	"tyre-assistant/internal/api"
	"tyre-assistant/internal/broker"
	"tyre-assistant/internal/llm"
	"tyre-assistant/internal/redisclient"
	"tyre-assistant/internal/resolver"
	"tyre-assistant/internal/retrieval"
	"tyre-assistant/internal/service"
	"tyre-assistant/internal/sqlgen"
	"tyre-assistant/internal/store"
	"tyre-assistant/internal/util"
	"tyre-assistant/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting tyre assistant")

	tp, err := util.InitTracer("tyre-assistant", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders)
	defer orderProducer.Close()
	inventoryProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory)
	defer inventoryProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(orderProducer, inventoryProducer)

	chatClient := llm.NewClient(cfg.LLM)
	embedder := llm.NewEmbedder(cfg.LLM)

	entityCache := resolver.NewCache(redisClient)
	ctx := context.Background()
	if err := entityCache.Refresh(ctx, db); err != nil {
		log.Printf("Failed to refresh entity cache: %v", err)
	}

	generator := sqlgen.NewGenerator(chatClient)
	executor := sqlgen.NewExecutor(db.GetDB())
	retriever := retrieval.NewEngine(chatClient, embedder, db,
		cfg.Retrieval.TopK, cfg.Retrieval.SimilarityThreshold, cfg.Retrieval.MetadataScoreFloor)

	orderEngine := service.NewOrderEngine(chatClient, db, redisClient, eventPublisher)
	finalizer := service.NewFinalizer(chatClient, db)
	assistant := service.NewAssistant(entityCache, orderEngine, generator, executor, retriever, embedder, finalizer, db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	orderConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders, cfg.Kafka.ConsumerGroup)
	orderWorker := worker.NewOrderIngestWorker(orderConsumer, db, embedder)
	go func() {
		if err := orderWorker.Start(workerCtx); err != nil {
			log.Printf("Order ingestion worker error: %v", err)
		}
	}()

	inventoryConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory, cfg.Kafka.ConsumerGroup)
	inventoryWorker := worker.NewInventoryIngestWorker(inventoryConsumer, db, embedder)
	go func() {
		if err := inventoryWorker.Start(workerCtx); err != nil {
			log.Printf("Inventory ingestion worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(assistant, db)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	orderWorker.Stop()
	inventoryWorker.Stop()

	log.Println("Server exited")
}
