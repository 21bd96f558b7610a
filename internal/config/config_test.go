package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsEnvironment(t *testing.T) {
	req := require.New(t)

	t.Setenv("PORT", "8080")
	t.Setenv("STORE_URL", "http://localhost:8000/api/messages/")
	t.Setenv("STORE_ID_FIELD", "message_id")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("SEND_BUFFER_SIZE", "64")
	t.Setenv("ALLOWED_ORIGIN", "http://localhost:5173")

	cfg, err := Load()
	req.NoError(err)
	req.Equal(8080, cfg.Port)
	req.Equal("http://localhost:8000/api/messages/", cfg.StoreURL)
	req.Equal("message_id", cfg.StoreIDField)
	req.Equal(2*time.Second, cfg.StoreTimeout)
	req.Equal(64, cfg.SendBufferSize)
	req.Equal("http://localhost:5173", cfg.AllowedOrigin)
}

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)

	t.Setenv("PORT", "8080")
	t.Setenv("STORE_URL", "http://localhost:8000/api/messages/")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("id", cfg.StoreIDField)
	req.Equal(10*time.Second, cfg.StoreTimeout)
	req.Equal(256, cfg.SendBufferSize)
	req.Empty(cfg.AllowedOrigin)
}

func TestLoad_MissingRequiredVarFails(t *testing.T) {
	req := require.New(t)

	t.Setenv("STORE_URL", "http://localhost:8000/api/messages/")

	// t.Setenv cannot unset, so snapshot and restore PORT by hand.
	old, had := os.LookupEnv("PORT")
	os.Unsetenv("PORT")
	t.Cleanup(func() {
		if had {
			os.Setenv("PORT", old)
		}
	})

	_, err := Load()
	req.Error(err)
}
