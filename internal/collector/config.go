package collector

import (
	"fmt"

	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/cellid"
)

// Config configures the period collector.
type Config struct {
	// Subscriptions lists what is evaluated at every period boundary.
	// Defaults to every supported metric at node and UE level.
	Subscriptions []Subscription `yaml:"subscriptions"`

	// QueueSize bounds pending period ticks.
	// Defaults to 16.
	QueueSize int `yaml:"queue_size"`
}

// Subscription selects metrics at one level. An empty Names list selects
// every metric supported with the given labels and cell.
type Subscription struct {
	// Level is "node" or "ue".
	Level string `yaml:"level"`

	Names []string `yaml:"names"`

	// Labels are label names (min, max, avg, sum). Empty means no label.
	Labels []string `yaml:"labels"`

	// Cell restricts the subscription to one cell, as "plmn/nci" in hex.
	Cell string `yaml:"cell"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Subscriptions: []Subscription{
			{Level: "node"},
			{Level: "ue"},
		},
		QueueSize: 16,
	}
}

// Validate checks every subscription parses.
func (c *Config) Validate() error {
	for i, sub := range c.Subscriptions {
		if _, err := sub.parse(); err != nil {
			return fmt.Errorf("subscriptions[%d]: %w", i, err)
		}
	}

	return nil
}

type parsedSubscription struct {
	level  catalog.Level
	names  []string
	labels []catalog.Label
	cell   *cellid.CellGlobalID
}

func (s Subscription) parse() (parsedSubscription, error) {
	level, ok := catalog.ParseLevel(s.Level)
	if !ok {
		return parsedSubscription{}, fmt.Errorf("invalid level %q", s.Level)
	}

	out := parsedSubscription{
		level: level,
		names: s.Names,
	}

	for _, name := range s.Labels {
		l, ok := catalog.ParseLabel(name)
		if !ok {
			return parsedSubscription{}, fmt.Errorf("invalid label %q", name)
		}

		out.labels = append(out.labels, l)
	}

	if len(out.labels) == 0 {
		out.labels = []catalog.Label{catalog.NoLabel}
	}

	if s.Cell != "" {
		cgi, err := cellid.Parse(s.Cell)
		if err != nil {
			return parsedSubscription{}, err
		}

		out.cell = &cgi
	}

	return out, nil
}
