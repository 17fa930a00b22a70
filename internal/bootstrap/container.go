package bootstrap

import (
	"time"

	"medichat-be/internal/config"
	"medichat-be/internal/controller"
	"medichat-be/internal/pkg/logger"
	"medichat-be/internal/repository/unitofwork"
	"medichat-be/internal/service"
	"medichat-be/pkg/auth/cognito"
	"medichat-be/pkg/llm"
	"medichat-be/pkg/llm/groq"

	"gorm.io/gorm"
)

type Container struct {
	ChatbotController controller.IChatbotController
	Logger            logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. External Collaborators
	verifier := cognito.NewVerifier(
		cfg.Auth.CognitoRegion,
		cfg.Auth.CognitoUserPoolId,
		cfg.Auth.CognitoClientId,
		cfg.Auth.JwksMinRefresh,
	)

	llmProvider := groq.NewGroqProvider(
		cfg.Ai.GroqBaseURL,
		cfg.Ai.GroqAPIKey,
		cfg.Ai.Model,
	)

	// 3. Services
	chatbotService := service.NewChatbotService(
		uowFactory,
		llmProvider,
		llm.TimestampEnricher(time.Now),
		service.ChatbotConfig{
			Temperature: cfg.Ai.Temperature,
			TopP:        cfg.Ai.TopP,
			MaxTokens:   cfg.Ai.MaxTokens,
			Timeout:     cfg.Ai.Timeout,
		},
		sysLogger,
	)

	// 4. Controllers
	chatbotController := controller.NewChatbotController(chatbotService, verifier)

	return &Container{
		ChatbotController: chatbotController,
		Logger:            sysLogger,
	}
}
