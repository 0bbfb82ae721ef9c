package graph

import (
	"context"
	"fmt"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
	"github.com/sirupsen/logrus"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/pkg/config"
)

// MetadataStore is the slice of the metadata layer the graph client needs.
// Graph writes bump aggregate counters; stats queries read back the flushed
// values.
type MetadataStore interface {
	Add(record, bin string, delta int64)
	ReadRecord(ctx context.Context, record string) (map[string]int64, error)
}

// Client wraps two physically separate Gremlin connection pools. The main
// pool serves transaction writes and admin queries; the fraud pool serves
// rule traversals. Saturating one never starves the other.
type Client struct {
	cfg       config.GraphConfig
	mainConn  *gremlingo.DriverRemoteConnection
	fraudConn *gremlingo.DriverRemoteConnection
	main      *gremlingo.GraphTraversalSource
	fraud     *gremlingo.GraphTraversalSource
	counters  MetadataStore
	log       *logrus.Entry
}

// NewClient dials both pools and verifies them with a health check.
// Startup fails if either pool cannot reach the Gremlin endpoint.
func NewClient(cfg config.GraphConfig, counters MetadataStore, logger *logrus.Logger) (*Client, error) {
	url := fmt.Sprintf("ws://%s:%d/gremlin", cfg.GremlinHost, cfg.GremlinPort)
	log := logger.WithField("component", "graph")

	log.WithField("url", url).Info("connecting to gremlin endpoint")

	mainConn, err := dial(url, cfg, cfg.MainConnectionPoolSize)
	if err != nil {
		return nil, fmt.Errorf("dial main pool: %w", err)
	}

	fraudConn, err := dial(url, cfg, cfg.FraudConnectionPoolSize)
	if err != nil {
		mainConn.Close()
		return nil, fmt.Errorf("dial fraud pool: %w", err)
	}

	c := &Client{
		cfg:       cfg,
		mainConn:  mainConn,
		fraudConn: fraudConn,
		main:      gremlingo.Traversal_().WithRemote(mainConn),
		fraud:     gremlingo.Traversal_().WithRemote(fraudConn),
		counters:  counters,
		log:       log,
	}

	if err := c.HealthCheck(context.Background()); err != nil {
		c.Close()
		return nil, err
	}

	log.Info("connected to gremlin endpoint")
	return c, nil
}

func dial(url string, cfg config.GraphConfig, poolSize int) (*gremlingo.DriverRemoteConnection, error) {
	return gremlingo.NewDriverRemoteConnection(url,
		func(settings *gremlingo.DriverRemoteConnectionSettings) {
			settings.TraversalSource = cfg.TraversalSource
			settings.MaximumConcurrentConnections = poolSize
			settings.NewConnectionThreshold = cfg.MaxInProcessPerConnection
		})
}

// HealthCheck round-trips a trivial traversal through both pools
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for name, g := range map[string]*gremlingo.GraphTraversalSource{
		"main": c.main, "fraud": c.fraud,
	} {
		res, err := g.Inject(0).Next()
		if err != nil {
			return fmt.Errorf("%w: %s pool: %v", fraud.ErrGraphUnavailable, name, err)
		}
		if res == nil {
			return fmt.Errorf("%w: %s pool returned no result", fraud.ErrGraphUnavailable, name)
		}
	}
	return nil
}

// Close tears down both pools
func (c *Client) Close() {
	if c.mainConn != nil {
		c.mainConn.Close()
		c.log.Info("main pool closed")
	}
	if c.fraudConn != nil {
		c.fraudConn.Close()
		c.log.Info("fraud pool closed")
	}
}
