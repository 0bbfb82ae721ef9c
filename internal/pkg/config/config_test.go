package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost", cfg.Graph.GremlinHost)
	assert.Equal(t, 8182, cfg.Graph.GremlinPort)
	assert.Equal(t, 100, cfg.Generation.SchedulerTPSCapacity)
	assert.Equal(t, 4000, cfg.Generation.MaxTransactionRate)
	assert.Equal(t, AutoFlagBoth, cfg.Fraud.AutoFlag.Mode)
	assert.Equal(t, time.Second, cfg.Metadata.FlushInterval)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("FRAUD_GRAPH_GREMLIN_HOST", "gremlin.internal")
	os.Setenv("FRAUD_GENERATION_MAX_TRANSACTION_RATE", "2500")
	defer os.Unsetenv("FRAUD_GRAPH_GREMLIN_HOST")
	defer os.Unsetenv("FRAUD_GENERATION_MAX_TRANSACTION_RATE")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gremlin.internal", cfg.Graph.GremlinHost)
	assert.Equal(t, 2500, cfg.Generation.MaxTransactionRate)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Graph.GremlinHost = "" }},
		{"zero port", func(c *Config) { c.Graph.GremlinPort = 0 }},
		{"negative main pool", func(c *Config) { c.Graph.MainConnectionPoolSize = -1 }},
		{"zero fraud pool", func(c *Config) { c.Graph.FraudConnectionPoolSize = 0 }},
		{"zero worker pool", func(c *Config) { c.Generation.TransactionWorkerPoolSize = 0 }},
		{"zero tps capacity", func(c *Config) { c.Generation.SchedulerTPSCapacity = 0 }},
		{"zero max rate", func(c *Config) { c.Generation.MaxTransactionRate = 0 }},
		{"zero rule timeout", func(c *Config) { c.Fraud.RuleTimeout = 0 }},
		{"unknown auto flag mode", func(c *Config) { c.Fraud.AutoFlag.Mode = "everyone" }},
		{"empty namespace", func(c *Config) { c.Metadata.Namespace = "" }},
		{"zero flush interval", func(c *Config) { c.Metadata.FlushInterval = 0 }},
		{"zero flush threshold", func(c *Config) { c.Metadata.FlushThreshold = 0 }},
		{"warmup without parallelism", func(c *Config) {
			c.Warmup.Enabled = true
			c.Warmup.Parallelism = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
