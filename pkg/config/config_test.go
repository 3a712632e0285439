package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"MAX_RESERVATION_DAYS", "FINE_PRICE", "HTTP_ADDR", "JWT_TTL", "DB_NAME"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Lending.MaxReservationDays)
	assert.True(t, cfg.Lending.FinePrice.Equal(decimal.RequireFromString("5.00")))
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "library", cfg.DB.Name)
	assert.Contains(t, cfg.DB.DSN(), "dbname=library")
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_RESERVATION_DAYS", "14")
	t.Setenv("FINE_PRICE", "12.50")
	t.Setenv("NOTIFICATION_URL", "http://notify:9000")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Lending.MaxReservationDays)
	assert.Equal(t, "12.5", cfg.Lending.FinePrice.String())
	assert.Equal(t, "http://notify:9000", cfg.Notify.URL)
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non numeric days", key: "MAX_RESERVATION_DAYS", value: "ten"},
		{name: "zero days", key: "MAX_RESERVATION_DAYS", value: "0"},
		{name: "bad fine price", key: "FINE_PRICE", value: "five"},
		{name: "negative fine price", key: "FINE_PRICE", value: "-1"},
		{name: "bad ttl", key: "JWT_TTL", value: "forever"},
		{name: "bad seed flag", key: "SEED_DATA", value: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
