package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:seido.db", cfg.Database.WriterDSN)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, DeleteReject, cfg.Customers.DeletePolicy)
	assert.Equal(t, currency.USD, cfg.Report.Currency)
	assert.Equal(t, 100, cfg.Report.SeedCustomers)
	assert.Equal(t, 500, cfg.Report.SeedOrders)
	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
}

func TestNewMissingConnectionString(t *testing.T) {
	t.Setenv("DB_WRITER_DSN", "   ")

	_, err := New()
	require.ErrorIs(t, err, ErrConfigurationMissing)
	assert.Contains(t, err.Error(), "DB_WRITER_DSN")
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_WRITER_DSN", "postgres://seido@localhost/seido")
	t.Setenv("DB_READER_DSN", "postgres://seido@replica/seido")
	t.Setenv("CUSTOMER_DELETE_POLICY", "CASCADE")
	t.Setenv("REPORT_CURRENCY", "SEK")
	t.Setenv("CACHE_DEFAULT_TTL", "not-a-duration")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://seido@replica/seido", cfg.Database.ReaderDSN)
	assert.Equal(t, DeleteCascade, cfg.Customers.DeletePolicy)
	assert.Equal(t, currency.SEK, cfg.Report.Currency)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "/prom", cfg.Observability.PrometheusPath)
}

func TestNewRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"driver":   {"DB_DRIVER", "oracle"},
		"policy":   {"CUSTOMER_DELETE_POLICY", "orphan"},
		"currency": {"REPORT_CURRENCY", "XXXX"},
		"port":     {"HTTP_PORT", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := New()
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrConfigurationMissing)
		})
	}
}

func TestGetEnvAsStringSlice(t *testing.T) {
	t.Setenv("SEIDO_LIST", " a, ,b ,")
	assert.Equal(t, []string{"a", "b"}, getEnvAsStringSlice("SEIDO_LIST", nil))

	t.Setenv("SEIDO_LIST", " , ")
	assert.Equal(t, []string{"x"}, getEnvAsStringSlice("SEIDO_LIST", []string{"x"}))
}
