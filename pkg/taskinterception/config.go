package taskinterception

import (
	"strings"

	"github.com/jt828/go-trace-propagation/pkg/contextcell"
	"github.com/jt828/go-trace-propagation/pkg/observability"
)

// Config selects which task types get their context propagated. Nothing is
// intercepted unless it is listed in Includes or IncludeAll is set.
type Config struct {
	// Includes holds type names as printed by %T, for example
	// "*jobs.Reindex". A trailing "*" matches any name with that prefix.
	Includes   []string
	IncludeAll bool

	Logger observability.Logger
	Meter  observability.Meter
	Cell   contextcell.Cell[Task, *PropagatedState]
}

type Option func(*Config)

func WithIncludes(names ...string) Option {
	return func(c *Config) {
		c.Includes = append(c.Includes, names...)
	}
}

func WithIncludeAll(includeAll bool) Option {
	return func(c *Config) {
		c.IncludeAll = includeAll
	}
}

func WithLogger(log observability.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithMeter(meter observability.Meter) Option {
	return func(c *Config) {
		c.Meter = meter
	}
}

// WithCell replaces the association used to store captured contexts.
func WithCell(cell contextcell.Cell[Task, *PropagatedState]) Option {
	return func(c *Config) {
		c.Cell = cell
	}
}

func ApplyOptions(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Config) Allows(typeName string) bool {
	if c.IncludeAll {
		return true
	}
	for _, pattern := range c.Includes {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(typeName, prefix) {
				return true
			}
			continue
		}
		if pattern == typeName {
			return true
		}
	}
	return false
}
