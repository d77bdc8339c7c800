// Package stream consumes DU report envelopes from a valkey stream through a
// consumer group.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/valkey-io/valkey-go"

	"github.com/ethpandaops/e2kpm/internal/export"
	"github.com/ethpandaops/e2kpm/internal/ingest"
)

// Config configures the valkey stream consumer.
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	// Stream is the stream key producers XADD envelopes to.
	Stream string `yaml:"stream"`
	// Group is the consumer group. It is created on start if missing.
	Group string `yaml:"group"`
	// Consumer names this agent within the group. Defaults to a random
	// "e2kpm-<uuid>" name; set it to resume pending entries after a restart.
	Consumer string `yaml:"consumer"`
	// Field is the entry field holding the JSON envelope.
	Field     string        `yaml:"field"`
	BatchSize int64         `yaml:"batch_size"`
	Block     time.Duration `yaml:"block"`
	// DisableCache turns off client side caching, for servers without
	// CLIENT TRACKING support.
	DisableCache bool `yaml:"disable_cache"`
	// MaxBackoff caps the reconnect delay.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Stream == "" {
		c.Stream = "e2kpm:reports"
	}

	if c.Group == "" {
		c.Group = "e2kpm"
	}

	if c.Consumer == "" {
		c.Consumer = "e2kpm-" + uuid.NewString()
	}

	if c.Field == "" {
		c.Field = "payload"
	}

	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}

	if c.Block <= 0 {
		c.Block = time.Second
	}

	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Address == "" {
		return errors.New("address is required")
	}

	return nil
}

// Consumer reads envelopes with XREADGROUP, ingests them and acknowledges
// them. Entries that fail to decode are acknowledged too, so a poison entry
// never blocks the group.
type Consumer struct {
	log      logrus.FieldLogger
	cfg      Config
	ingester *ingest.Ingester
	health   *export.HealthMetrics

	client valkey.Client
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Consumer. health may be nil.
func New(
	log logrus.FieldLogger,
	cfg Config,
	ing *ingest.Ingester,
	health *export.HealthMetrics,
) *Consumer {
	cfg.ApplyDefaults()

	return &Consumer{
		log: log.WithFields(logrus.Fields{
			"component": "stream",
			"stream":    cfg.Stream,
			"consumer":  cfg.Consumer,
		}),
		cfg:      cfg,
		ingester: ing,
		health:   health,
	}
}

// Name returns the consumer name within the group.
func (c *Consumer) Name() string {
	return c.cfg.Consumer
}

// Start connects, creates the consumer group and begins consuming.
func (c *Consumer) Start(ctx context.Context) error {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{c.cfg.Address},
		Password:     c.cfg.Password,
		DisableCache: c.cfg.DisableCache,
	})
	if err != nil {
		return fmt.Errorf("creating valkey client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()

		return fmt.Errorf("pinging valkey: %w", err)
	}

	c.client = client

	if err := c.ensureGroup(ctx); err != nil {
		client.Close()

		return err
	}

	c.setConnected(true)

	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)

	go c.run(ctx)

	c.log.WithField("group", c.cfg.Group).Info("Stream consumer started")

	return nil
}

// Stop halts consumption and closes the client.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()

	if c.client != nil {
		c.client.Close()
	}

	c.setConnected(false)

	return nil
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(c.cfg.Stream).
		Group(c.cfg.Group).
		Id("0").
		Mkstream().
		Build()).Error()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group %s: %w", c.cfg.Group, err)
	}

	return nil
}

func (c *Consumer) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = c.cfg.MaxBackoff
	// Never stops retrying.
	b.MaxElapsedTime = 0

	return b
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	bo := c.newBackoff()

	// Entries delivered to this consumer but never acknowledged, e.g. before
	// a crash, are replayed first.
	id := "0"

	for ctx.Err() == nil {
		n, err := c.poll(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			c.setConnected(false)

			if c.health != nil {
				c.health.IngestReconnects.WithLabelValues(ingest.TransportValkey).Inc()
			}

			wait := bo.NextBackOff()

			c.log.WithError(err).WithField("retry_in", wait).Warn("Stream read failed")

			if strings.Contains(err.Error(), "NOGROUP") {
				if gerr := c.ensureGroup(ctx); gerr != nil {
					c.log.WithError(gerr).Warn("Recreating consumer group failed")
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			continue
		}

		c.setConnected(true)
		bo.Reset()

		if id == "0" && n == 0 {
			id = ">"
		}
	}
}

// poll reads one batch starting after id and returns how many entries were
// handled. id ">" blocks for new entries; any other id reads this
// consumer's pending entries without blocking.
func (c *Consumer) poll(ctx context.Context, id string) (int, error) {
	var cmd valkey.Completed

	if id == ">" {
		cmd = c.client.B().Xreadgroup().
			Group(c.cfg.Group, c.cfg.Consumer).
			Count(c.cfg.BatchSize).
			Block(c.cfg.Block.Milliseconds()).
			Streams().
			Key(c.cfg.Stream).
			Id(id).
			Build()
	} else {
		cmd = c.client.B().Xreadgroup().
			Group(c.cfg.Group, c.cfg.Consumer).
			Count(c.cfg.BatchSize).
			Streams().
			Key(c.cfg.Stream).
			Id(id).
			Build()
	}

	res, err := c.client.Do(ctx, cmd).AsXRead()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("reading stream: %w", err)
	}

	entries := res[c.cfg.Stream]
	if len(entries) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(entries))

	for _, e := range entries {
		ids = append(ids, e.ID)

		payload, ok := e.FieldValues[c.cfg.Field]
		if !ok {
			c.log.WithField("entry", e.ID).Debug("Stream entry has no payload field")
		}

		if err := c.ingester.Decode(ingest.TransportValkey, []byte(payload)); err != nil {
			c.log.WithError(err).WithField("entry", e.ID).Debug("Dropping undecodable stream entry")
		}
	}

	err = c.client.Do(ctx, c.client.B().Xack().
		Key(c.cfg.Stream).
		Group(c.cfg.Group).
		Id(ids...).
		Build()).Error()
	if err != nil {
		return 0, fmt.Errorf("acknowledging %d entries: %w", len(ids), err)
	}

	return len(ids), nil
}

func (c *Consumer) setConnected(up bool) {
	if c.health == nil {
		return
	}

	v := 0.0
	if up {
		v = 1
	}

	c.health.IngestConnected.WithLabelValues(ingest.TransportValkey).Set(v)
}
