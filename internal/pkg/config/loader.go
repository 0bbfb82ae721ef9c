package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()

	// Set defaults from DefaultConfig
	setDefaults(v, cfg)

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Config file not found is ok - we use defaults and env vars
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Read from environment variables
	v.SetEnvPrefix("FRAUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal into config struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	// Server defaults
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	// Graph defaults
	v.SetDefault("graph.gremlin_host", cfg.Graph.GremlinHost)
	v.SetDefault("graph.gremlin_port", cfg.Graph.GremlinPort)
	v.SetDefault("graph.traversal_source", cfg.Graph.TraversalSource)
	v.SetDefault("graph.main_connection_pool_size", cfg.Graph.MainConnectionPoolSize)
	v.SetDefault("graph.fraud_connection_pool_size", cfg.Graph.FraudConnectionPoolSize)
	v.SetDefault("graph.max_in_process_per_connection", cfg.Graph.MaxInProcessPerConnection)
	v.SetDefault("graph.request_timeout", cfg.Graph.RequestTimeout)
	v.SetDefault("graph.seed_vertices_path", cfg.Graph.SeedVerticesPath)
	v.SetDefault("graph.seed_edges_path", cfg.Graph.SeedEdgesPath)

	// Generation defaults
	v.SetDefault("generation.transaction_worker_pool_size", cfg.Generation.TransactionWorkerPoolSize)
	v.SetDefault("generation.scheduler_tps_capacity", cfg.Generation.SchedulerTPSCapacity)
	v.SetDefault("generation.max_transaction_rate", cfg.Generation.MaxTransactionRate)
	v.SetDefault("generation.consecutive_failure_limit", cfg.Generation.ConsecutiveFailureLimit)
	v.SetDefault("generation.queue_capacity", cfg.Generation.QueueCapacity)

	// Fraud defaults
	v.SetDefault("fraud.worker_pool_size", cfg.Fraud.WorkerPoolSize)
	v.SetDefault("fraud.rule_timeout", cfg.Fraud.RuleTimeout)
	v.SetDefault("fraud.auto_flag.enabled", cfg.Fraud.AutoFlag.Enabled)
	v.SetDefault("fraud.auto_flag.score_threshold", cfg.Fraud.AutoFlag.ScoreThreshold)
	v.SetDefault("fraud.auto_flag.mode", cfg.Fraud.AutoFlag.Mode)

	// Metadata defaults
	v.SetDefault("metadata.namespace", cfg.Metadata.Namespace)
	v.SetDefault("metadata.set_name", cfg.Metadata.SetName)
	v.SetDefault("metadata.kv_address", cfg.Metadata.KVAddress)
	v.SetDefault("metadata.kv_password", cfg.Metadata.KVPassword)
	v.SetDefault("metadata.kv_database", cfg.Metadata.KVDatabase)
	v.SetDefault("metadata.flush_interval", cfg.Metadata.FlushInterval)
	v.SetDefault("metadata.flush_threshold", cfg.Metadata.FlushThreshold)
	v.SetDefault("metadata.request_timeout", cfg.Metadata.RequestTimeout)

	// Warmup defaults
	v.SetDefault("warmup.enabled", cfg.Warmup.Enabled)
	v.SetDefault("warmup.time", cfg.Warmup.Time)
	v.SetDefault("warmup.parallelism", cfg.Warmup.Parallelism)

	// Log defaults
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
