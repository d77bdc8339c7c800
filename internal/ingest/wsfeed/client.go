// Package wsfeed reads DU report envelopes from a metrics websocket.
package wsfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/e2kpm/internal/export"
	"github.com/ethpandaops/e2kpm/internal/ingest"
	"github.com/ethpandaops/e2kpm/internal/version"
)

// DefaultSubscribe is the command the DU metrics server expects before it
// starts pushing reports.
const DefaultSubscribe = `{"cmd":"metrics_subscribe"}`

// Config configures the websocket feed.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// URL is the ws:// or wss:// endpoint.
	URL string `yaml:"url"`
	// Subscribe is sent as a text frame after every connect. Set to "-" to
	// send nothing.
	Subscribe        string            `yaml:"subscribe"`
	Headers          map[string]string `yaml:"headers"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
	MaxBackoff       time.Duration     `yaml:"max_backoff"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Subscribe == "" {
		c.Subscribe = DefaultSubscribe
	}

	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
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

	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme)
	}

	return nil
}

// Client keeps a websocket connection to the DU open and ingests every text
// frame as a report envelope. Lost connections are redialled with
// exponential backoff.
type Client struct {
	log      logrus.FieldLogger
	cfg      Config
	ingester *ingest.Ingester
	health   *export.HealthMetrics
	dialer   *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Client. health may be nil.
func New(
	log logrus.FieldLogger,
	cfg Config,
	ing *ingest.Ingester,
	health *export.HealthMetrics,
) *Client {
	cfg.ApplyDefaults()

	return &Client{
		log:      log.WithFields(logrus.Fields{"component": "wsfeed", "url": cfg.URL}),
		cfg:      cfg,
		ingester: ing,
		health:   health,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Start begins the connect/read loop. A DU that is not reachable yet is not
// an error; the client keeps retrying.
func (c *Client) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)

	go c.run(ctx)

	return nil
}

// Stop closes the connection and waits for the loop to exit.
func (c *Client) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}

	c.closeConn()
	c.wg.Wait()

	return nil
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = c.cfg.MaxBackoff
	// Never stops retrying.
	bo.MaxElapsedTime = 0

	for ctx.Err() == nil {
		conn, err := c.dial(ctx)
		if err == nil {
			bo.Reset()

			err = c.read(ctx, conn)
		}

		c.setConnected(false)

		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()

		c.log.WithError(err).WithField("retry_in", wait).Warn("Websocket feed disconnected")

		if c.health != nil {
			c.health.IngestReconnects.WithLabelValues(ingest.TransportWebsocket).Inc()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := make(http.Header, len(c.cfg.Headers)+1)
	header.Set("User-Agent", version.UserAgent())

	for k, v := range c.cfg.Headers {
		header.Set(k, v)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err != nil {
		return nil, fmt.Errorf("dialing: %w", err)
	}

	if c.cfg.Subscribe != "-" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(c.cfg.Subscribe)); err != nil {
			conn.Close()

			return nil, fmt.Errorf("sending subscribe command: %w", err)
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setConnected(true)
	c.log.Info("Websocket feed connected")

	return conn, nil
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	defer c.closeConn()

	done := make(chan struct{})
	defer close(done)

	// Unblock ReadMessage on shutdown.
	go func() {
		select {
		case <-ctx.Done():
			c.closeConn()
		case <-done:
		}
	}()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("closed by peer")
			}

			return fmt.Errorf("reading: %w", err)
		}

		if typ != websocket.TextMessage {
			continue
		}

		if err := c.ingester.Decode(ingest.TransportWebsocket, data); err != nil {
			c.log.WithError(err).Debug("Dropping undecodable websocket frame")
		}
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) setConnected(up bool) {
	if c.health == nil {
		return
	}

	v := 0.0
	if up {
		v = 1
	}

	c.health.IngestConnected.WithLabelValues(ingest.TransportWebsocket).Set(v)
}
