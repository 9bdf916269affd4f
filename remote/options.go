package remote

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds one HTTP round trip when no client is supplied.
const DefaultTimeout = 15 * time.Second

type config struct {
	httpClient *http.Client
	token      string
	logger     *slog.Logger
}

func newConfig(opts []Option) config {
	c := config{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures an HR or conversation client.
type Option func(*config)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *config) { c.token = token }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}
