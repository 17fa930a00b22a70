package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Ai       AIConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	CognitoRegion     string
	CognitoUserPoolId string
	CognitoClientId   string
	JwksMinRefresh    time.Duration
}

type AIConfig struct {
	GroqAPIKey  string
	GroqBaseURL string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			CognitoRegion:     getEnv("COGNITO_REGION", "ap-south-1"),
			CognitoUserPoolId: getEnv("COGNITO_USERPOOL_ID", ""),
			CognitoClientId:   getEnv("COGNITO_APP_CLIENT_ID", ""),
			JwksMinRefresh:    getEnvAsDuration("JWKS_MIN_REFRESH", time.Minute),
		},
		Ai: AIConfig{
			GroqAPIKey:  getEnv("GROQ_API_KEY", ""),
			GroqBaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai"),
			Model:       getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0.8),
			TopP:        getEnvAsFloat("LLM_TOP_P", 1),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 512),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
