package config

import (
	"discord-moderator/model"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load loads the boot configuration from the environment, an optional .env file
// and an optional moderator.yaml in the working directory.
func Load() (*model.Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Info: .env file not found, relying on environment variables")
	}

	v := viper.New()
	v.SetConfigName("moderator")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("CLASSIFIER_TIMEOUT", "30s")
	v.SetDefault("DASHBOARD_ADDR", ":3000")
	v.SetDefault("DIGEST_CRON", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read moderator.yaml: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*model.Config, error) {
	token := v.GetString("BOT_TOKEN")
	if token == "" {
		return nil, errors.New("BOT_TOKEN environment variable not set")
	}

	if v.GetString("OPENAI_API_KEY") == "" {
		log.Println("Warning: OPENAI_API_KEY not set, every message will be treated as not flagged")
	}

	logChannelID := v.GetString("LOG_CHANNEL_ID")
	if logChannelID == "" {
		log.Println("Warning: LOG_CHANNEL_ID not set, log channel messages will be disabled")
	}

	timeout := v.GetDuration("CLASSIFIER_TIMEOUT")
	if timeout <= 0 {
		log.Printf("Warning: Invalid CLASSIFIER_TIMEOUT value, using default of 30s")
		timeout = 30 * time.Second
	}

	password := v.GetString("DASHBOARD_PASSWORD")
	secret := v.GetString("JWT_SECRET")
	if password != "" && secret == "" {
		return nil, errors.New("JWT_SECRET must be set when DASHBOARD_PASSWORD is set")
	}

	return &model.Config{
		BotToken:          token,
		AppID:             v.GetString("APP_ID"),
		LogChannelID:      logChannelID,
		DataDir:           v.GetString("DATA_DIR"),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:     v.GetString("OPENAI_BASE_URL"),
		OpenAIModel:       v.GetString("OPENAI_MODEL"),
		ClassifierTimeout: timeout,
		DashboardAddr:     v.GetString("DASHBOARD_ADDR"),
		DashboardPassword: password,
		JWTSecret:         secret,
		DigestCron:        v.GetString("DIGEST_CRON"),
		DigestChannelIDs:  splitList(v.GetString("DIGEST_CHANNEL_IDS")),
	}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DataDir resolves DATA_DIR without requiring the bot credentials, for
// offline commands that only read local state.
func DataDir() string {
	_ = godotenv.Load()
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DATA_DIR", "data")
	return v.GetString("DATA_DIR")
}
