package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hibiken/asynq"

	"github.com/nckmackenzie/atarah-api/internal/api"
	"github.com/nckmackenzie/atarah-api/internal/cache"
	"github.com/nckmackenzie/atarah-api/internal/config"
	"github.com/nckmackenzie/atarah-api/internal/db"
	"github.com/nckmackenzie/atarah-api/internal/email"
	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/storage"
	"github.com/nckmackenzie/atarah-api/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background worker), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// The posting accounts must exist before any invoice or payment is
	// recorded.
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := services.NewAccountService(mongoDb).EnsureSystemAccounts(seedCtx); err != nil {
		cancelSeed()
		log.Fatalf("Failed to seed system accounts: %v", err)
	}
	cancelSeed()

	// Initialize Task Client and Queue
	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	taskQueue := tasks.NewQueue(taskClient)

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Context cancelled on shutdown; stops the overdue check scheduler.
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		fmt.Println("Starting main API server...")
		mainApiRouter := api.SetupRouter(cfg, mongoDb, redisClient, taskQueue)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	bgMode := func() {
		fmt.Println("Starting background worker...")

		// Initialize S3 client (thumbnail generation reads and writes objects
		// directly).
		awsCfg, awsErr := aws_config.LoadDefaultConfig(rootCtx,
			aws_config.WithRegion(cfg.AwsRegion),
			aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AwsAccessKeyID,
				cfg.AwsSecretAccessKey,
				"",
			)),
		)
		if awsErr != nil {
			log.Fatalf("Failed to load AWS config for S3 client: %v", awsErr)
		}
		s3Client := s3.NewFromConfig(awsCfg)

		// Email sender, optionally teeing every message to a file for local
		// debugging.
		compositeSender := email.NewCompositeEmailSender(email.NewSMTPSender(cfg))
		if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
			fileSender, fileErr := email.NewFileEmailSender(logEmailsPath, cfg)
			if fileErr != nil {
				log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS=%q): %v", logEmailsPath, fileErr)
			} else {
				compositeSender.AddSender(fileSender)
				log.Println("File email logger added to composite sender.")
			}
		}

		// The worker needs its own service graph; it shares nothing in-process
		// with the API.
		clientService := services.NewClientService(mongoDb)
		catalogService := services.NewCatalogService(mongoDb)
		projectService := services.NewProjectService(mongoDb)
		accountService := services.NewAccountService(mongoDb)
		journalService := services.NewJournalService(mongoDb, accountService)
		invoiceService := services.NewInvoiceService(mongoDb, cfg, clientService, catalogService, accountService, journalService)
		s3StorageService, s3Err := storage.NewS3Storage(cfg)
		if s3Err != nil {
			log.Fatalf("Failed to initialize S3 storage for worker: %v", s3Err)
		}
		expenseService := services.NewExpenseService(mongoDb, accountService, projectService, journalService, s3StorageService, taskQueue)

		taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender, invoiceService, expenseService, clientService, s3Client)

		srv, mux := tasks.SetupServer(redisClient, taskProcessor)
		backgroundTaskSrv = srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Println("Background task server starting...")
			if err := srv.Run(mux); err != nil {
				log.Fatalf("Background task server error: %v", err)
			}
			fmt.Println("Background task server stopped.")
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			tasks.ScheduleOverdueChecks(rootCtx, taskClient, cfg.OverdueCheckInterval)
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatalf("Invalid run mode specified: %s.", cfg.RunMode)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)

	cancelRoot()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}

	if backgroundTaskSrv != nil {
		fmt.Println("Shutting down Background Task server...")
		backgroundTaskSrv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}
