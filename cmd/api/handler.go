package api

import (
	"log"

	authUsecase "thinkwrapper-backend/internal/auth/usecase"
	billingDelivery "thinkwrapper-backend/internal/billing/delivery"
	billingUsecasePkg "thinkwrapper-backend/internal/billing/usecase"
	nlDelivery "thinkwrapper-backend/internal/newsletter/delivery"
	nlUsecasePkg "thinkwrapper-backend/internal/newsletter/usecase"
	taskDelivery "thinkwrapper-backend/internal/task/delivery"
	"thinkwrapper-backend/internal/task/scheduler"
	taskUsecasePkg "thinkwrapper-backend/internal/task/usecase"
	"thinkwrapper-backend/pkg/ai"
	"thinkwrapper-backend/pkg/config"
	"thinkwrapper-backend/pkg/mailer"
	"thinkwrapper-backend/pkg/render"
	"thinkwrapper-backend/pkg/search"

	"github.com/gin-gonic/gin"
)

// Handler wires the HTTP surface and the background machinery together
type Handler struct {
	config            *config.Config
	authUsecase       authUsecase.AuthUsecase
	newsletterHandler *nlDelivery.NewsletterHandler
	taskHandler       *taskDelivery.TaskHandler
	webhookHandler    *billingDelivery.WebhookHandler
	executor          *taskUsecasePkg.Executor
	sweeper           *scheduler.Sweeper
}

// Deps carries everything main.go constructs from the database
type Deps struct {
	Config            *config.Config
	AuthUsecase       authUsecase.AuthUsecase
	NewsletterUsecase *nlUsecasePkg.NewsletterUsecase
	TaskService       *taskUsecasePkg.Service
	Executor          *taskUsecasePkg.Executor
	Sweeper           *scheduler.Sweeper
	Ingress           *billingUsecasePkg.Ingress
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		config:            deps.Config,
		authUsecase:       deps.AuthUsecase,
		newsletterHandler: nlDelivery.NewNewsletterHandler(deps.NewsletterUsecase),
		taskHandler:       taskDelivery.NewTaskHandler(deps.TaskService, deps.NewsletterUsecase),
		webhookHandler:    billingDelivery.NewWebhookHandler(deps.Ingress),
		executor:          deps.Executor,
		sweeper:           deps.Sweeper,
	}
}

// NewSynthesisService builds the AI service with runtime Ollama settings.
// Lives here because the settings API owns the runtime config.
func NewSynthesisService(cfg *config.Config) ai.SynthesisService {
	InitRuntimeConfig(cfg.OllamaBaseURL, cfg.OllamaModel)

	aiCfg := ai.DynamicConfig{
		Provider:         ai.ProviderType(cfg.AIProvider),
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		AnthropicModel:   cfg.AnthropicModel,
		GetOllamaBaseURL: GetRuntimeOllamaBaseURL,
		GetOllamaModel:   GetRuntimeOllamaModel,
	}
	service, err := ai.NewSynthesisServiceWithDynamicConfig(aiCfg)
	if err != nil {
		log.Fatalf("Failed to initialize AI service: %v", err)
	}
	log.Printf("AI service initialized with provider: %s (dynamic config enabled)", cfg.AIProvider)
	return service
}

// NewSearchProvider builds the web search client. Without an API key the
// client reports not-configured and the pipeline degrades to zero sources.
func NewSearchProvider(cfg *config.Config) search.Provider {
	client := search.NewBraveClient(cfg.BraveAPIKey)
	if !client.Configured() {
		log.Println("Warning: BRAVE_SEARCH_API_KEY not set. Issues will be generated without web sources.")
	}
	return client
}

// NewSender builds the delivery channel, falling back to console logging
// when SendGrid is not configured
func NewSender(cfg *config.Config) mailer.Sender {
	if cfg.SendGridAPIKey == "" {
		log.Println("Warning: SENDGRID_API_KEY not set. Issues will be logged instead of emailed.")
		return mailer.NewConsoleSender()
	}
	return mailer.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName)
}

// NewRenderer builds the issue renderer
func NewRenderer() *render.Renderer {
	return render.NewRenderer()
}

// Start launches the background workers and the HTTP server. Blocks until
// the server exits.
func (h *Handler) Start(addr string) error {
	h.executor.Start()
	h.sweeper.Start()

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.newsletterHandler, h.taskHandler, h.webhookHandler)

	return r.Run(addr)
}

// Stop shuts down the background workers
func (h *Handler) Stop() {
	h.sweeper.Stop()
	h.executor.Stop()
}
