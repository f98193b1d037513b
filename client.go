// Copyright 2024-2025 The OpenJProxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ojp

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openjproxy/ojp-go/endpoint"
	"github.com/openjproxy/ojp-go/internal"
	"github.com/openjproxy/ojp-go/locator"
	"github.com/openjproxy/ojp-go/router"
	"github.com/openjproxy/ojp-go/serde"
	"github.com/openjproxy/ojp-go/wire"
)

// UnlimitedRetries disables the dispatcher's attempt cap. The retry delay
// still applies between attempts.
const UnlimitedRetries = -1

// Option customizes a Client.
type Option interface {
	apply(*clientOptions)
}

type optionFunc func(*clientOptions)

func (f optionFunc) apply(opts *clientOptions) {
	f(opts)
}

// WithRetryAttempts sets how many times the dispatcher retries after its
// first attempt (on a retryable failure or when no endpoint is selectable)
// before giving up. Pass UnlimitedRetries to retry forever.
func WithRetryAttempts(attempts int) Option {
	return optionFunc(func(opts *clientOptions) {
		opts.retryAttempts = attempts
	})
}

// WithRetryDelay sets the pause between dispatcher attempts and the
// quarantine an unhealthy endpoint serves before a recovery sweep re-dials
// it.
func WithRetryDelay(delay time.Duration) Option {
	return optionFunc(func(opts *clientOptions) {
		opts.retryDelay = delay
	})
}

// WithMaxInboundMessageSize bounds messages accepted from the server. The
// limit is set at channel construction and enforced by the transport.
func WithMaxInboundMessageSize(limit int) Option {
	return optionFunc(func(opts *clientOptions) {
		opts.maxInboundMessageSize = limit
	})
}

// WithMaxOutboundMessageSize bounds messages sent to the server. The limit
// is enforced locally before a message enters the transport; violations
// fail with KindMessageTooLarge.
func WithMaxOutboundMessageSize(limit int) Option {
	return optionFunc(func(opts *clientOptions) {
		opts.maxOutboundMessageSize = limit
	})
}

// WithDialFunc replaces how channels to endpoints are established. Mostly
// useful for tests and custom transports.
func WithDialFunc(dial router.DialFunc) Option {
	return optionFunc(func(opts *clientOptions) {
		opts.dialFunc = dial
	})
}

// WithLogger routes the driver's logging to the given logger. The default
// discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return optionFunc(func(opts *clientOptions) {
		opts.logger = log
	})
}

// WithMetrics attaches a metrics set the client will update. Register it
// with your Prometheus registry separately.
func WithMetrics(m *Metrics) Option {
	return optionFunc(func(opts *clientOptions) {
		opts.metrics = m
	})
}

func withClock(clock internal.Clock) Option {
	return optionFunc(func(opts *clientOptions) {
		opts.clock = clock
	})
}

type clientOptions struct {
	retryAttempts          int
	retryDelay             time.Duration
	maxInboundMessageSize  int
	maxOutboundMessageSize int
	dialFunc               router.DialFunc
	logger                 logrus.FieldLogger
	metrics                *Metrics
	clock                  internal.Clock
}

func (opts *clientOptions) applyDefaults() {
	if opts.retryAttempts == 0 {
		opts.retryAttempts = 3
	}
	if opts.retryDelay == 0 {
		opts.retryDelay = time.Second
	}
	if opts.maxInboundMessageSize == 0 {
		opts.maxInboundMessageSize = wire.DefaultMaxInboundMessageSize
	}
	if opts.maxOutboundMessageSize == 0 {
		opts.maxOutboundMessageSize = wire.DefaultMaxOutboundMessageSize
	}
	if opts.logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		opts.logger = logger
	}
	if opts.clock == nil {
		opts.clock = internal.NewRealClock()
	}
}

// Client routes calls to a set of proxy endpoints parsed from a composite
// locator. Safe for concurrent use.
type Client struct {
	locatorURL     string
	downstreamURL  string
	poolProfile    string
	fallbackFamily wire.DbName
	clientID       string

	opts   clientOptions
	router *router.Router
	log    logrus.FieldLogger
	clock  internal.Clock
}

// New parses the composite locator and returns a client over its endpoint
// set. No connection is made until the first call.
func New(locatorURL string, options ...Option) (*Client, error) {
	var opts clientOptions
	for _, opt := range options {
		opt.apply(&opts)
	}
	opts.applyDefaults()

	set, err := locator.ParseEndpoints(locatorURL)
	if err != nil {
		return nil, newError(KindInvalidLocator, "", err)
	}

	c := &Client{
		locatorURL:     locatorURL,
		downstreamURL:  locator.ExtractDownstreamURL(locatorURL),
		poolProfile:    locator.ExtractPoolProfile(locatorURL),
		fallbackFamily: locator.DetectFamily(locator.ExtractDownstreamURL(locatorURL)),
		clientID:       uuid.NewString(),
		opts:           opts,
		log:            opts.logger,
		clock:          opts.clock,
	}

	dial := opts.dialFunc
	if dial == nil {
		dial = c.defaultDial
	}
	c.router = router.New(router.Config{
		Registry:   endpoint.NewRegistry(set),
		Dial:       dial,
		RetryDelay: opts.retryDelay,
		Clock:      opts.clock,
		Logger:     opts.logger,
	})

	c.log.WithFields(logrus.Fields{
		"endpoints": locator.FormatEndpoints(set.All()),
		"profile":   c.poolProfile,
	}).Debug("client initialized")
	return c, nil
}

// DownstreamURL returns the database locator the remote servers connect
// with.
func (c *Client) DownstreamURL() string {
	return c.downstreamURL
}

// PoolProfile returns the pool profile named in the locator, or "default".
func (c *Client) PoolProfile() string {
	return c.poolProfile
}

// Endpoints returns the configured endpoints in locator order.
func (c *Client) Endpoints() []endpoint.Endpoint {
	return c.router.Registry().Set().All()
}

// Close tears down every channel. In-flight calls fail.
func (c *Client) Close() {
	c.router.Close()
}

// ConnectConfig carries the credentials and driver properties of a new
// session.
type ConnectConfig struct {
	User       string
	Password   string
	Properties map[string]any
}

// Connect opens a session on the next healthy endpoint in round-robin
// order and pins the session to it.
//
// The endpoint list is deliberately not attached to the connection details;
// servers discover their peers through their own configuration.
func (c *Client) Connect(ctx context.Context, cfg ConnectConfig) (*Session, error) {
	props, err := serde.MarshalProperties(cfg.Properties)
	if err != nil {
		return nil, err
	}
	details := &wire.ConnectionDetails{
		Url:        c.locatorURL,
		User:       cfg.User,
		Password:   cfg.Password,
		ClientUUID: c.clientID,
		Properties: props,
	}
	c.log.WithField("servers", locator.FormatEndpoints(c.Endpoints())).
		Debug("connecting")

	var info *wire.SessionInfo
	err = c.dispatch(ctx, "", "connect", func(ctx context.Context, h *router.Handle) (*wire.SessionInfo, error) {
		resp, err := h.Client.Connect(ctx, details)
		if err != nil {
			return nil, err
		}
		info = resp
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return newSession(info, c.fallbackFamily), nil
}
