package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/napassornsp/chat-new/api"
	"github.com/napassornsp/chat-new/config"
	"github.com/napassornsp/chat-new/database"
	"github.com/napassornsp/chat-new/middleware"
	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/realtime"
	"github.com/napassornsp/chat-new/repository"
	"github.com/napassornsp/chat-new/services"
)

func main() {
	// Load application configuration
	config.LoadConfig()

	// Initialize database connection
	db, err := database.Init()
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to initialize database: %v", err)
	}

	// Auto-migrate database schema
	runMigrations(db)

	// Initialize Repositories
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	ocrRepo := repository.NewOCRRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	log.Println("INFO: [Main] Repositories initialized.")

	// Initialize Services
	hub := realtime.NewHub()
	creditService := services.NewCreditService(creditRepo)
	chatService := services.NewChatService(chatRepo, creditService, hub)
	ocrService := services.NewOCRService(ocrRepo, creditService, hub)
	gateway := services.NewTableGateway(db, chatRepo, hub)
	log.Println("INFO: [Main] Services initialized.")

	if config.AppConfig.Seed {
		seeder := services.NewSeeder(userRepo, chatRepo, notificationRepo, creditService)
		if err := seeder.Seed(); err != nil {
			log.Fatalf("FATAL: [Main] Failed to seed demo accounts: %v", err)
		}
	}

	// Initialize API Handler with all dependencies
	apiHandler := api.NewAPIHandler(
		userRepo,
		notificationRepo,
		creditService,
		chatService,
		ocrService,
		gateway,
		hub,
	)
	log.Println("INFO: [Main] API Handler initialized.")

	// Create Gin engine
	r := gin.New()
	r.SetTrustedProxies(nil)

	// Register middlewares
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Cors())
	r.Use(middleware.BearerAuth(userRepo))
	log.Println("INFO: [Main] Middlewares registered.")

	// Register routes
	registerRoutes(r, apiHandler)
	log.Println("INFO: [Main] Routes registered.")

	// Start the server
	serverPort := ":" + config.AppConfig.Server.Port
	if config.AppConfig.Server.Port == "" {
		log.Println("WARN: [Main] Server port not configured, using default :5001.")
		serverPort = ":5001"
	}
	log.Printf("INFO: [Main] Starting server on port %s", serverPort)
	if err := r.Run(serverPort); err != nil {
		log.Fatalf("FATAL: [Main] Server failed to start: %v", err)
	}
}

func runMigrations(db *gorm.DB) {
	log.Println("INFO: [Main] Running database migrations...")
	err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Session{},
		&models.UserCredit{},
		&models.Chat{},
		&models.Message{},
		&models.OCRBillExtract{},
		&models.OCRBankExtract{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to auto-migrate database: %v", err)
	}
	log.Println("INFO: [Main] Database migration completed.")
}

func registerRoutes(r *gin.Engine, handler *api.APIHandler) {
	r.GET("/health", handler.HealthHandler)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", handler.SignupHandler)
		authGroup.POST("/login", handler.LoginHandler)
		authGroup.GET("/me", handler.AuthMeHandler)
		authGroup.POST("/logout", handler.LogoutHandler)
	}

	r.GET("/me", handler.ProfileHandler)
	r.PUT("/me", handler.UpdateProfileHandler)

	rpcGroup := r.Group("/rpc")
	{
		rpcGroup.POST("/get_credits", handler.GetCreditsHandler)
		rpcGroup.POST("/reset_monthly_credits", handler.ResetCreditsHandler)
		rpcGroup.POST("/set_plan", handler.SetPlanHandler)
	}

	r.POST("/functions/v1/:name", handler.FunctionsHandler)

	ocrGroup := r.Group("/ocr")
	{
		ocrGroup.POST("/analyze_bill", handler.AnalyzeBillHandler)
		ocrGroup.POST("/analyze_bank", handler.AnalyzeBankHandler)
	}

	// The static notifications routes take precedence over the generic
	// :table routes.
	dbGroup := r.Group("/db")
	{
		dbGroup.GET("/notifications", handler.ListNotificationsHandler)
		dbGroup.POST("/notifications", handler.CreateNotificationHandler)
		dbGroup.GET("/:table", handler.TableSelectHandler)
		dbGroup.POST("/:table", handler.TableInsertHandler)
		dbGroup.PATCH("/:table", handler.TableUpdateHandler)
		dbGroup.DELETE("/:table", handler.TableDeleteHandler)
	}

	r.GET("/realtime", handler.RealtimeHandler)
}
