package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/warden/internal/config"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

// Requirement: flags override the environment and only when set.
func TestLoadServeConfig_FlagsOverrideEnv(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantPort   int
		wantStore  string
		wantFormat string
	}{
		{
			name:       "env only",
			args:       nil,
			wantPort:   4000,
			wantStore:  config.StorePostgres,
			wantFormat: "json",
		},
		{
			name:       "all flags",
			args:       []string{"--port", "8080", "--store", "memory", "--log-format", "text"},
			wantPort:   8080,
			wantStore:  config.StoreMemory,
			wantFormat: "text",
		},
		{
			name:       "port only",
			args:       []string{"--port=9090"},
			wantPort:   9090,
			wantStore:  config.StorePostgres,
			wantFormat: "json",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			t.Setenv("JWT_SECRET", testSecret)
			t.Setenv("PORT", "4000")
			t.Setenv("STORE", "postgres")
			t.Setenv("LOG_FORMAT", "json")
			t.Setenv("DATABASE_URL", "postgres://localhost/warden")
			cmd := NewServeCmd()
			require.NoError(t, cmd.ParseFlags(test.args))

			// Act
			cfg, err := loadServeConfig(cmd)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, test.wantPort, cfg.Port)
			assert.Equal(t, test.wantStore, cfg.Store)
			assert.Equal(t, test.wantFormat, cfg.LogFormat)
		})
	}
}

func TestLoadServeConfig_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cmd := NewServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--store", "memory"}))

	_, err := loadServeConfig(cmd)

	require.Error(t, err)
	assertErrorCode(t, err, "CONFIG_INVALID")
}

func TestNewApp_Middleware(t *testing.T) {
	tests := []struct {
		name            string
		origins         []string
		origin          string
		wantAllowOrigin string
		wantCredentials string
	}{
		{
			name:            "wildcard",
			origins:         []string{"*"},
			origin:          "https://anywhere.example",
			wantAllowOrigin: "*",
			wantCredentials: "",
		},
		{
			name:            "explicit origin allows credentials",
			origins:         []string{"https://app.example.com"},
			origin:          "https://app.example.com",
			wantAllowOrigin: "https://app.example.com",
			wantCredentials: "true",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			app := newApp(config.Config{CORSOrigins: test.origins})
			app.Get("/ping", func(c fiber.Ctx) error { return c.SendString("pong") })
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set("Origin", test.origin)

			// Act
			resp, err := app.Test(req)

			// Assert
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, test.wantAllowOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, test.wantCredentials, resp.Header.Get("Access-Control-Allow-Credentials"))
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		})
	}
}

func TestNewApp_RecoversFromPanic(t *testing.T) {
	app := newApp(config.Config{CORSOrigins: []string{"*"}})
	app.Get("/boom", func(fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
