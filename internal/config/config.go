// Package config loads the widget endpoints and runtime settings from the
// environment.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/johndosdos/pagewidgets/internal/chat"
	"github.com/johndosdos/pagewidgets/internal/render"
	"github.com/johndosdos/pagewidgets/internal/userlist"
)

// Prefix is prepended to every variable name, e.g. PAGEWIDGETS_USERS_URL.
const Prefix = "PAGEWIDGETS"

// Config holds all configuration for the widgets and the CLI. Every variable
// is read as PAGEWIDGETS_<NAME>, falling back to the bare <NAME> when the
// prefixed one is unset.
type Config struct {
	UsersURL    string        `envconfig:"USERS_URL" default:"http://localhost:5000/users"`
	UserURL     string        `envconfig:"USER_URL" default:"http://localhost:5000/user"`
	ChatURL     string        `envconfig:"CHAT_URL" default:"http://127.0.0.1:3001/chat"`
	Greeting    string        `envconfig:"GREETING" default:"User has connected!"`
	RenderMode  render.Mode   `envconfig:"RENDER_MODE" default:"escape"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	// Outbound chat messages per minute. Zero disables the limit.
	ChatRateLimit int `envconfig:"CHAT_RATE_LIMIT" default:"0"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded, relying on environment variables: %v", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.ChatRateLimit < 0 {
		return Config{}, fmt.Errorf("config error: %s_CHAT_RATE_LIMIT must not be negative", Prefix)
	}
	return cfg, nil
}

// UserList returns the user list widget configuration.
func (c Config) UserList() userlist.Config {
	cfg := userlist.DefaultConfig()
	cfg.UsersURL = c.UsersURL
	cfg.UserURL = c.UserURL
	cfg.Mode = c.RenderMode
	cfg.Timeout = c.HTTPTimeout
	return cfg
}

// Chat returns the chat widget configuration.
func (c Config) Chat() chat.Config {
	cfg := chat.DefaultConfig()
	cfg.URL = c.ChatURL
	cfg.Greeting = c.Greeting
	cfg.Mode = c.RenderMode
	return cfg
}
