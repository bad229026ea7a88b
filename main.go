package main

import (
	"log"

	api "thinkwrapper-backend/cmd/api"
	authdomain "thinkwrapper-backend/internal/auth/domain"
	authRepo "thinkwrapper-backend/internal/auth/repository"
	authUsecase "thinkwrapper-backend/internal/auth/usecase"
	billingdomain "thinkwrapper-backend/internal/billing/domain"
	billingRepo "thinkwrapper-backend/internal/billing/repository"
	billingUsecase "thinkwrapper-backend/internal/billing/usecase"
	nldomain "thinkwrapper-backend/internal/newsletter/domain"
	nlRepo "thinkwrapper-backend/internal/newsletter/repository"
	nlUsecase "thinkwrapper-backend/internal/newsletter/usecase"
	taskdomain "thinkwrapper-backend/internal/task/domain"
	taskRepo "thinkwrapper-backend/internal/task/repository"
	"thinkwrapper-backend/internal/task/scheduler"
	taskUsecase "thinkwrapper-backend/internal/task/usecase"
	"thinkwrapper-backend/pkg/config"
	"thinkwrapper-backend/pkg/database"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&nldomain.Newsletter{},
		&nldomain.Issue{},
		&taskdomain.Task{},
		&billingdomain.WebhookEvent{},
		&billingdomain.Subscription{},
		&billingdomain.Transaction{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepository := authRepo.NewUserRepository(db)
	newsletterRepository := nlRepo.NewNewsletterRepository(db)
	issueRepository := nlRepo.NewIssueRepository(db)
	taskRepository := taskRepo.NewGormTaskRepository(db)
	billingRepository := billingRepo.NewBillingRepository(db)

	// Initialize external providers
	synthesisService := api.NewSynthesisService(cfg)
	searchProvider := api.NewSearchProvider(cfg)
	sender := api.NewSender(cfg)
	renderer := api.NewRenderer()

	// Initialize use cases
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepository, cfg)
	newsletterUsecaseInstance := nlUsecase.NewNewsletterUsecase(newsletterRepository, issueRepository)
	pipeline := nlUsecase.NewPipeline(searchProvider, synthesisService, renderer, issueRepository)
	ingress := billingUsecase.NewIngress(cfg.PaddleWebhookSecret, billingRepository, userRepository)

	// Task machinery: submission service, worker pool, periodic sweep
	taskService := taskUsecase.NewService(taskRepository, cfg.TaskMaxRetries)
	executor := taskUsecase.NewExecutor(
		taskRepository,
		taskService,
		pipeline,
		newsletterRepository,
		issueRepository,
		userRepository,
		sender,
		taskUsecase.ExecutorConfig{
			WorkerCount:   cfg.WorkerCount,
			TaskTimeout:   cfg.TaskTimeout,
			LeaseDuration: cfg.LeaseDuration,
			BackoffBase:   cfg.TaskBackoffBase,
		},
	)
	sweeper := scheduler.NewSweeper(newsletterRepository, taskRepository, taskService, cfg.SweepInterval, cfg.TaskRetention)

	// Initialize HTTP handler
	handler := api.NewHandler(api.Deps{
		Config:            cfg,
		AuthUsecase:       authUsecaseInstance,
		NewsletterUsecase: newsletterUsecaseInstance,
		TaskService:       taskService,
		Executor:          executor,
		Sweeper:           sweeper,
		Ingress:           ingress,
	})
	defer handler.Stop()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
