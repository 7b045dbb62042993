package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nckmackenzie/atarah-api/internal/api/handlers"
	"github.com/nckmackenzie/atarah-api/internal/api/middleware"
	"github.com/nckmackenzie/atarah-api/internal/config"
	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/storage"
	"github.com/nckmackenzie/atarah-api/internal/tasks"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskQueue *tasks.Queue) *gin.Engine {
	// Services wire bottom-up: accounts and journals first since invoicing,
	// payments and expenses all post to the ledger.
	clientService := services.NewClientService(db)
	catalogService := services.NewCatalogService(db)
	projectService := services.NewProjectService(db)
	accountService := services.NewAccountService(db)
	journalService := services.NewJournalService(db, accountService)
	invoiceService := services.NewInvoiceService(db, cfg, clientService, catalogService, accountService, journalService)
	paymentService := services.NewPaymentService(db, invoiceService, clientService, accountService, journalService)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}
	expenseService := services.NewExpenseService(db, accountService, projectService, journalService, s3StorageService, taskQueue)
	reportService := services.NewReportService(db, cfg, rdb, clientService, invoiceService, paymentService, expenseService)
	userService := services.NewUserService(db, cfg, taskQueue)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(cfg, userService)
	userHandler := handlers.NewUserHandler(userService)
	clientHandler := handlers.NewClientHandler(clientService)
	catalogHandler := handlers.NewCatalogHandler(catalogService, projectService)
	accountHandler := handlers.NewAccountHandler(accountService)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	expenseHandler := handlers.NewExpenseHandler(expenseService)
	journalHandler := handlers.NewJournalHandler(journalService)
	reportHandler := handlers.NewReportHandler(reportService)

	v1 := r.Group("/v1")
	{
		// Public routes
		v1.POST("/auth/login", authHandler.Login)
		v1.POST("/auth/forgot-password", authHandler.ForgotPassword)
		v1.POST("/auth/reset-password", authHandler.ResetPassword)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/auth/me", authHandler.Me)
			authRequired.POST("/auth/change-password", authHandler.ChangePassword)

			authRequired.GET("/clients", clientHandler.List)
			authRequired.POST("/clients", clientHandler.Create)
			authRequired.GET("/clients/:id", clientHandler.Get)
			authRequired.PUT("/clients/:id", clientHandler.Update)
			authRequired.DELETE("/clients/:id", clientHandler.Delete)

			authRequired.GET("/services", catalogHandler.ListServices)
			authRequired.POST("/services", catalogHandler.CreateService)
			authRequired.PUT("/services/:id", catalogHandler.UpdateService)
			authRequired.DELETE("/services/:id", catalogHandler.DeleteService)

			authRequired.GET("/projects", catalogHandler.ListProjects)
			authRequired.POST("/projects", catalogHandler.CreateProject)
			authRequired.PUT("/projects/:id", catalogHandler.UpdateProject)
			authRequired.DELETE("/projects/:id", catalogHandler.DeleteProject)

			authRequired.GET("/accounts", accountHandler.List)
			authRequired.POST("/accounts", accountHandler.Create)
			authRequired.GET("/accounts/:id", accountHandler.Get)
			authRequired.PUT("/accounts/:id", accountHandler.Update)
			authRequired.DELETE("/accounts/:id", accountHandler.Delete)

			// The static /outstanding route must precede the :id route.
			authRequired.GET("/invoices/outstanding", invoiceHandler.Outstanding)
			authRequired.GET("/invoices", invoiceHandler.List)
			authRequired.POST("/invoices", invoiceHandler.Create)
			authRequired.GET("/invoices/:id", invoiceHandler.Get)
			authRequired.PUT("/invoices/:id", invoiceHandler.Update)
			authRequired.DELETE("/invoices/:id", invoiceHandler.Delete)

			authRequired.GET("/payments", paymentHandler.List)
			authRequired.POST("/payments", paymentHandler.Create)
			authRequired.POST("/payments/bulk", paymentHandler.CreateBulk)
			authRequired.GET("/payments/:id", paymentHandler.Get)
			authRequired.DELETE("/payments/:id", paymentHandler.Delete)

			authRequired.GET("/expenses", expenseHandler.List)
			authRequired.POST("/expenses", expenseHandler.Create)
			authRequired.GET("/expenses/:id", expenseHandler.Get)
			authRequired.PUT("/expenses/:id", expenseHandler.Update)
			authRequired.DELETE("/expenses/:id", expenseHandler.Delete)
			authRequired.POST("/expenses/:id/attachments", expenseHandler.RequestAttachmentUpload)
			authRequired.DELETE("/expenses/:id/attachments/:attachmentId", expenseHandler.RemoveAttachment)

			authRequired.GET("/journals", journalHandler.List)
			authRequired.POST("/journals", journalHandler.Create)
			authRequired.GET("/journals/:id", journalHandler.Get)
			authRequired.DELETE("/journals/:id", journalHandler.Delete)

			authRequired.GET("/reports/statement/:clientId", reportHandler.ClientStatement)
			authRequired.GET("/reports/outstanding", reportHandler.OutstandingInvoices)
			authRequired.GET("/reports/collections", reportHandler.CollectedPayments)
			authRequired.GET("/reports/expenses", reportHandler.ExpenseSummary)
			authRequired.GET("/reports/income", reportHandler.IncomeSummary)
			authRequired.GET("/dashboard", reportHandler.Dashboard)
		}

		// Admin routes
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.GET("/users", userHandler.List)
			adminRequired.POST("/users", userHandler.Create)
			adminRequired.GET("/users/:id", userHandler.Get)
			adminRequired.PUT("/users/:id", userHandler.Update)
			adminRequired.DELETE("/users/:id", userHandler.Delete)
		}
	}

	return r
}
