package config

import (
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Generation GenerationConfig `mapstructure:"generation"`
	Fraud      FraudConfig      `mapstructure:"fraud"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	Warmup     WarmupConfig     `mapstructure:"warmup"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds the control API server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GraphConfig holds Gremlin server and connection pool configuration.
// Main and fraud pools are physically separate so write load and rule
// traversals never compete for the same connections.
type GraphConfig struct {
	GremlinHost               string        `mapstructure:"gremlin_host"`
	GremlinPort               int           `mapstructure:"gremlin_port"`
	TraversalSource           string        `mapstructure:"traversal_source"`
	MainConnectionPoolSize    int           `mapstructure:"main_connection_pool_size"`
	FraudConnectionPoolSize   int           `mapstructure:"fraud_connection_pool_size"`
	MaxInProcessPerConnection int           `mapstructure:"max_in_process_per_connection"`
	RequestTimeout            time.Duration `mapstructure:"request_timeout"`
	SeedVerticesPath          string        `mapstructure:"seed_vertices_path"`
	SeedEdgesPath             string        `mapstructure:"seed_edges_path"`
}

// GenerationConfig holds transaction generator configuration
type GenerationConfig struct {
	TransactionWorkerPoolSize int `mapstructure:"transaction_worker_pool_size"`
	SchedulerTPSCapacity      int `mapstructure:"scheduler_tps_capacity"`
	MaxTransactionRate        int `mapstructure:"max_transaction_rate"`
	ConsecutiveFailureLimit   int `mapstructure:"consecutive_failure_limit"`
	QueueCapacity             int `mapstructure:"queue_capacity"`
}

// FraudConfig holds rule evaluation configuration
type FraudConfig struct {
	WorkerPoolSize int            `mapstructure:"worker_pool_size"`
	RuleTimeout    time.Duration  `mapstructure:"rule_timeout"`
	AutoFlag       AutoFlagConfig `mapstructure:"auto_flag"`
}

// AutoFlagConfig controls automatic account flagging after a high-score
// fraud verdict
type AutoFlagConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ScoreThreshold int    `mapstructure:"score_threshold"`
	Mode           string `mapstructure:"mode"`
}

// Auto-flag modes. Mode selects which side of a flagged transaction gets
// its account marked.
const (
	AutoFlagSender   = "sender"
	AutoFlagReceiver = "receiver"
	AutoFlagBoth     = "both"
)

// MetadataConfig holds the write-behind counter store configuration
type MetadataConfig struct {
	Namespace      string        `mapstructure:"namespace"`
	SetName        string        `mapstructure:"set_name"`
	KVAddress      string        `mapstructure:"kv_address"`
	KVPassword     string        `mapstructure:"kv_password"`
	KVDatabase     int           `mapstructure:"kv_database"`
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
	FlushThreshold int64         `mapstructure:"flush_threshold"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// WarmupConfig holds startup warmup configuration
type WarmupConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Time        time.Duration `mapstructure:"time"`
	Parallelism int           `mapstructure:"parallelism"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Graph: GraphConfig{
			GremlinHost:               "localhost",
			GremlinPort:               8182,
			TraversalSource:           "g",
			MainConnectionPoolSize:    4,
			FraudConnectionPoolSize:   8,
			MaxInProcessPerConnection: 64,
			RequestTimeout:            10 * time.Second,
			SeedVerticesPath:          "/data/vertices",
			SeedEdgesPath:             "/data/edges",
		},
		Generation: GenerationConfig{
			TransactionWorkerPoolSize: 16,
			SchedulerTPSCapacity:      100,
			MaxTransactionRate:        4000,
			ConsecutiveFailureLimit:   100,
			QueueCapacity:             1000,
		},
		Fraud: FraudConfig{
			WorkerPoolSize: 32,
			RuleTimeout:    time.Second,
			AutoFlag: AutoFlagConfig{
				Enabled:        false,
				ScoreThreshold: 100,
				Mode:           AutoFlagBoth,
			},
		},
		Metadata: MetadataConfig{
			Namespace:      "fraud",
			SetName:        "metadata",
			KVAddress:      "localhost:6379",
			KVPassword:     "",
			KVDatabase:     0,
			FlushInterval:  time.Second,
			FlushThreshold: 200,
			RequestTimeout: 3 * time.Second,
		},
		Warmup: WarmupConfig{
			Enabled:     false,
			Time:        30 * time.Second,
			Parallelism: 64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
