package config

import (
	"errors"
	"fmt"
)

// Validate validates the configuration. Invalid settings abort startup;
// the process never runs with a partially sane config.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Graph.GremlinHost == "" {
		return errors.New("gremlin_host must not be empty")
	}

	if c.Graph.GremlinPort <= 0 || c.Graph.GremlinPort > 65535 {
		return errors.New("invalid gremlin port")
	}

	if c.Graph.MainConnectionPoolSize <= 0 {
		return errors.New("main_connection_pool_size must be positive")
	}

	if c.Graph.FraudConnectionPoolSize <= 0 {
		return errors.New("fraud_connection_pool_size must be positive")
	}

	if c.Graph.MaxInProcessPerConnection <= 0 {
		return errors.New("max_in_process_per_connection must be positive")
	}

	if c.Generation.TransactionWorkerPoolSize <= 0 {
		return errors.New("transaction_worker_pool_size must be positive")
	}

	if c.Generation.SchedulerTPSCapacity <= 0 {
		return errors.New("scheduler_tps_capacity must be positive")
	}

	if c.Generation.MaxTransactionRate <= 0 {
		return errors.New("max_transaction_rate must be positive")
	}

	if c.Generation.ConsecutiveFailureLimit <= 0 {
		return errors.New("consecutive_failure_limit must be positive")
	}

	if c.Fraud.WorkerPoolSize <= 0 {
		return errors.New("fraud worker_pool_size must be positive")
	}

	if c.Fraud.RuleTimeout <= 0 {
		return errors.New("rule_timeout must be positive")
	}

	switch c.Fraud.AutoFlag.Mode {
	case AutoFlagSender, AutoFlagReceiver, AutoFlagBoth:
	default:
		return fmt.Errorf("invalid auto_flag mode %q: must be sender, receiver or both", c.Fraud.AutoFlag.Mode)
	}

	if c.Metadata.Namespace == "" || c.Metadata.SetName == "" {
		return errors.New("metadata namespace and set_name must not be empty")
	}

	if c.Metadata.FlushInterval <= 0 {
		return errors.New("metadata flush_interval must be positive")
	}

	if c.Metadata.FlushThreshold <= 0 {
		return errors.New("metadata flush_threshold must be positive")
	}

	if c.Warmup.Enabled && c.Warmup.Parallelism <= 0 {
		return errors.New("warmup parallelism must be positive when warmup is enabled")
	}

	return nil
}
