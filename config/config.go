package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Discord
	Token       string
	AdminID     string
	AdminRoleID string
	AdminUsers  []string

	// Quiz
	QuestionsPath    string
	FoldRulesPath    string
	QuestionDuration int
	Cooldown         time.Duration
	CommandPrefix    string

	// Storage
	StoreBackend string
	DataPath     string
	DatabasePath string

	// Application
	PruneInterval time.Duration
	LogLevel      string
	AppEnv        string
}

func Load() *Config {
	cfg := &Config{
		Token:       getEnv("DISCORD_TOKEN", ""),
		AdminID:     getEnv("ADMIN_ID", ""),
		AdminRoleID: getEnv("ADMIN_ROLE_ID", ""),
		AdminUsers:  getEnvList("ADMIN_USERS"),

		QuestionsPath:    getEnv("QUESTIONS_PATH", "questions.json"),
		FoldRulesPath:    getEnv("FOLD_RULES_PATH", ""),
		QuestionDuration: getEnvInt("QUESTION_DURATION", 10),
		Cooldown:         time.Duration(getEnvInt("COOLDOWN", 30)) * time.Second,
		CommandPrefix:    getEnv("COMMAND_PREFIX", "!!trivia"),

		StoreBackend: getEnv("STORE_BACKEND", "json"),
		DataPath:     getEnv("DATA_PATH", "server_data.json"),
		DatabasePath: getEnv("DATABASE_PATH", "./trivia.db"),

		PruneInterval: getEnvDuration("PRUNE_INTERVAL", time.Hour),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AppEnv:        getEnv("APP_ENV", "production"),
	}

	if cfg.AdminID != "" {
		cfg.AdminUsers = append(cfg.AdminUsers, cfg.AdminID)
	}
	return cfg
}

// Validate checks the settings needed to connect and run the quiz.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if err := c.ValidateQuiz(); err != nil {
		return err
	}
	if c.PruneInterval <= 0 {
		return fmt.Errorf("PRUNE_INTERVAL must be positive")
	}
	return nil
}

// ValidateQuiz checks the settings that do not need a gateway connection.
func (c *Config) ValidateQuiz() error {
	if c.QuestionDuration <= 0 {
		return fmt.Errorf("QUESTION_DURATION must be positive")
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("COOLDOWN must be positive")
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		return fmt.Errorf("COMMAND_PREFIX must not be empty")
	}
	switch c.StoreBackend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("STORE_BACKEND must be json or sqlite, got %q", c.StoreBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
