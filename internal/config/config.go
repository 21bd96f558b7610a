// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config carries everything the server needs at startup. PORT and
// STORE_URL have no defaults: without them the process refuses to start.
type Config struct {
	Port     int    `env:"PORT,required=true"`
	StoreURL string `env:"STORE_URL,required=true"`

	// Name of the field the store's response carries the assigned message
	// identifier under.
	StoreIDField string        `env:"STORE_ID_FIELD,default=id"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT,default=10s"`

	// Outbound frame buffer per connection; a session member this far
	// behind starts losing broadcasts.
	SendBufferSize int `env:"SEND_BUFFER_SIZE,default=256"`

	// Origin allowed on the REST surface. Empty disables the CORS layer.
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`
}

// Load reads a .env file when one is present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}
