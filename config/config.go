package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LLMConfig holds the optional upstream model settings. When APIKey is
// empty the chat service answers with built-in demo replies instead of
// calling a provider.
type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		DSN string // Data Source Name (e.g., "memory" or file path for SQLite)
	}
	Seed bool      `mapstructure:"seed"`
	LLM  LLMConfig `mapstructure:"llm"`
}

// AppConfig is the global configuration instance.
var AppConfig Config

// LoadConfig loads configuration from .env, config file and environment
// variables, in increasing order of precedence.
func LoadConfig() {
	if err := godotenv.Load(); err == nil {
		log.Println("INFO: [Config] Loaded environment from .env file.")
	}

	viper.SetConfigName("config")    // Name of config file (without extension)
	viper.SetConfigType("yaml")      // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath("./config")  // Path to look for the config file in
	viper.AddConfigPath(".")         // Optionally look for config in the working directory
	viper.AddConfigPath("../config") // For running from locations like tests

	viper.SetDefault("server.port", "5001")
	viper.SetDefault("database.dsn", "offline.db")
	viper.SetDefault("seed", true)
	viper.SetDefault("llm.model", "gpt-3.5-turbo")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("WARN: [Config] Configuration file (config.yaml) not found. Using environment variables and defaults.")
		} else {
			log.Fatalf("FATAL: [Config] Error reading configuration file: %v", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("FATAL: [Config] Failed to unmarshal configuration into AppConfig struct: %v", err)
	}

	// Environment variable overrides
	if port := os.Getenv("PORT"); port != "" {
		AppConfig.Server.Port = port
		log.Printf("INFO: [Config] Server port overridden by environment variable PORT: %s", port)
	}
	if dsn := os.Getenv("OFFLINE_DB_URL"); dsn != "" {
		AppConfig.Database.DSN = dsn
		log.Printf("INFO: [Config] Database DSN overridden by environment variable OFFLINE_DB_URL.")
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		AppConfig.LLM.APIKey = key
		log.Println("INFO: [Config] API key for the LLM provider loaded from environment variable OPENAI_API_KEY.")
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		AppConfig.LLM.BaseURL = base
	}

	log.Println("INFO: [Config] Configuration loading complete.")
}
