package api

import (
	"context"

	"github.com/okian/palco/pkg/logger"
)

type serverConfig struct {
	secret string
	stats  func(context.Context) any
	log    logger.Logger
}

// Option configures a Server.
type Option func(*serverConfig)

// WithAuthSecret enables bearer token checks signed with secret.
// An empty secret treats every caller as an operator.
func WithAuthSecret(secret string) Option {
	return func(c *serverConfig) {
		c.secret = secret
	}
}

// WithStats sets the provider served on GET /stats.
func WithStats(fn func(context.Context) any) Option {
	return func(c *serverConfig) {
		if fn != nil {
			c.stats = fn
		}
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		c.log = l
	}
}
