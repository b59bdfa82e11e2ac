package strix

import (
	"fmt"
	"sync"

	"github.com/strixdb/strix/dialect"
	"github.com/strixdb/strix/dialect/sql"
	"github.com/strixdb/strix/schema"
)

// Client ties a driver to the model registry and exposes the query and
// persistence surfaces. Model registration happens once at startup; the
// registry is consulted at runtime for relation resolution, never through
// reflection.
type Client struct {
	driver dialect.Driver
	cache  Cache

	mu     sync.RWMutex
	models map[string]*schema.Model
}

// Option configures a Client.
type Option func(*Client)

// Driver configures the client driver.
func Driver(d dialect.Driver) Option {
	return func(c *Client) { c.driver = d }
}

// WithCache configures a result cache consulted by cached queries.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// Debug wraps the configured driver with slog statement logging.
func Debug() Option {
	return func(c *Client) { c.driver = dialect.Debug(c.driver) }
}

// NewClient creates a new client configured with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{models: map[string]*schema.Model{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens a database/sql connection for the given dialect and source,
// and returns a client wrapping it.
func Open(dialectName, source string, opts ...Option) (*Client, error) {
	drv, err := sql.Open(dialectName, source)
	if err != nil {
		return nil, err
	}
	return NewClient(append([]Option{Driver(drv)}, opts...)...), nil
}

// Register adds model metadata to the registry. Registering a model twice
// under the same name, or with a missing table, is an error.
func (c *Client) Register(ms ...*schema.Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range ms {
		switch {
		case m.Name == "":
			return fmt.Errorf("strix: model with empty name")
		case m.Table == "":
			return fmt.Errorf("strix: model %q with empty table", m.Name)
		}
		if _, ok := c.models[m.Name]; ok {
			return fmt.Errorf("strix: model %q already registered", m.Name)
		}
		c.models[m.Name] = m
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (c *Client) MustRegister(ms ...*schema.Model) {
	if err := c.Register(ms...); err != nil {
		panic(err)
	}
}

// Model returns the registered model with the given name.
func (c *Client) Model(name string) (*schema.Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[name]
	if !ok {
		return nil, fmt.Errorf("strix: model %q not registered", name)
	}
	return m, nil
}

// New returns a new unsaved record of the given model.
func (c *Client) New(model string, fields map[string]any) (*Record, error) {
	m, err := c.Model(model)
	if err != nil {
		return nil, err
	}
	return newRecord(m, fields), nil
}

// Query returns a fresh query builder rooted at the model's table.
// The model must be registered; an unknown model yields a query that fails
// at execution time.
func (c *Client) Query(model string) *Query {
	m, err := c.Model(model)
	if err != nil {
		return &Query{client: c, err: err}
	}
	return &Query{
		client: c,
		model:  m,
		sel:    sql.From(m.Table),
	}
}
