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

// Package router selects the endpoint a call is dispatched to. New sessions
// round-robin over the healthy endpoints; established sessions stay pinned
// to the endpoint that created them until that endpoint fails. When no
// endpoint is healthy, a synchronous recovery sweep re-dials endpoints whose
// last failure is older than the retry delay.
package router

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openjproxy/ojp-go/endpoint"
	"github.com/openjproxy/ojp-go/internal"
)

// Config carries the router's collaborators. Dial is required; the zero
// values of the rest are usable.
type Config struct {
	Registry *endpoint.Registry
	Dial     DialFunc

	// RetryDelay is how long an endpoint stays quarantined after a failure
	// before a recovery sweep re-dials it.
	RetryDelay time.Duration

	Clock  internal.Clock
	Logger logrus.FieldLogger
}

// Router tracks session pins and the round-robin cursor over one endpoint
// registry. Safe for concurrent use.
type Router struct {
	registry   *endpoint.Registry
	cache      *ChannelCache
	retryDelay time.Duration
	clock      internal.Clock
	log        logrus.FieldLogger

	cursor atomic.Int64

	// pins maps session identifier -> endpoint. Insertion on response and
	// removal on failure may race; last writer wins, and a stale pin to an
	// unhealthy endpoint is fixed at next dispatch.
	mu   sync.RWMutex
	pins map[string]endpoint.Endpoint
}

// New returns a Router over the given registry.
func New(cfg Config) *Router {
	clock := cfg.Clock
	if clock == nil {
		clock = internal.NewRealClock()
	}
	log := cfg.Logger
	if log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		log = logger
	}
	return &Router{
		registry:   cfg.Registry,
		cache:      NewChannelCache(cfg.Dial),
		retryDelay: cfg.RetryDelay,
		clock:      clock,
		log:        log,
		pins:       map[string]endpoint.Endpoint{},
	}
}

// Registry returns the endpoint registry the router selects over.
func (r *Router) Registry() *endpoint.Registry {
	return r.registry
}

// Handle returns the channel handle for ep, dialing one if needed.
func (r *Router) Handle(ctx context.Context, ep endpoint.Endpoint) (*Handle, error) {
	return r.cache.Get(ctx, ep)
}

// SelectForNewSession picks the next healthy endpoint in round-robin order.
// If no endpoint is healthy it runs a recovery sweep first. The second
// return value is false when no endpoint could be found.
//
// The cursor walks the full ordered set and skips unhealthy entries, so it
// never rests on an unhealthy endpoint and a transiently failed endpoint
// does not make the cursor visit another endpoint twice in the same round.
func (r *Router) SelectForNewSession(ctx context.Context) (endpoint.Endpoint, bool) {
	if len(r.registry.HealthyEndpoints()) == 0 {
		r.recoverySweep(ctx)
	}
	set := r.registry.Set()
	for i := 0; i < set.Len(); i++ {
		cursor := r.cursor.Add(1) - 1
		if cursor < 0 {
			cursor = -cursor
		}
		selected := set.Get(int(cursor % int64(set.Len())))
		if r.registry.Healthy(selected) {
			r.log.WithField("endpoint", selected.Addr()).Debug("selected endpoint round-robin")
			return selected, true
		}
	}
	// Endpoints kept failing under our feet for a full cycle; settle for any
	// healthy survivor.
	if healthy := r.registry.HealthyEndpoints(); len(healthy) > 0 {
		return healthy[0], true
	}
	r.log.Warn("no healthy endpoints available")
	return endpoint.Endpoint{}, false
}

// SelectForSession routes a call that carries a session identifier. A
// pinned, healthy endpoint wins; a pinned, unhealthy endpoint is unpinned
// before falling back to round-robin; an empty or unknown identifier
// delegates to SelectForNewSession.
func (r *Router) SelectForSession(ctx context.Context, sessionID string) (endpoint.Endpoint, bool) {
	if sessionID == "" {
		return r.SelectForNewSession(ctx)
	}
	pinned, ok := r.Pinned(sessionID)
	if !ok {
		return r.SelectForNewSession(ctx)
	}
	if r.registry.Healthy(pinned) {
		return pinned, true
	}
	r.Unpin(sessionID)
	r.log.WithFields(logrus.Fields{
		"session":  sessionID,
		"endpoint": pinned.Addr(),
	}).Warn("pinned endpoint unhealthy, falling back to round-robin")
	return r.SelectForNewSession(ctx)
}

// Pin associates a session identifier with the endpoint that produced its
// latest response.
func (r *Router) Pin(sessionID string, ep endpoint.Endpoint) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	r.pins[sessionID] = ep
	r.mu.Unlock()
}

// Unpin drops the session's endpoint association.
func (r *Router) Unpin(sessionID string) {
	r.mu.Lock()
	delete(r.pins, sessionID)
	r.mu.Unlock()
}

// Pinned returns the endpoint a session is pinned to, if any.
func (r *Router) Pinned(sessionID string) (endpoint.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.pins[sessionID]
	return ep, ok
}

// MarkFailed attributes a transport failure to ep: flips it unhealthy,
// records the failure time, and tears its channel down.
func (r *Router) MarkFailed(ep endpoint.Endpoint) {
	r.registry.MarkUnhealthy(ep, r.clock.Now())
	r.cache.Evict(ep)
	r.log.WithField("endpoint", ep.Addr()).Warn("endpoint marked unhealthy")
}

// MarkRecovered records a successful call through ep.
func (r *Router) MarkRecovered(ep endpoint.Endpoint) {
	r.registry.MarkHealthy(ep)
}

// recoverySweep re-dials unhealthy endpoints whose quarantine has elapsed.
// Runs inline under the selection that found no healthy endpoint; there is
// no background sweep.
func (r *Router) recoverySweep(ctx context.Context) {
	now := r.clock.Now()
	for _, ep := range r.registry.UnhealthyEndpoints() {
		if now.Sub(r.registry.LastFailure(ep)) <= r.retryDelay {
			continue
		}
		r.log.WithField("endpoint", ep.Addr()).Debug("attempting endpoint recovery")
		if _, err := r.cache.Get(ctx, ep); err != nil {
			r.registry.RecordFailedRecovery(ep, now)
			r.log.WithField("endpoint", ep.Addr()).WithError(err).Debug("endpoint recovery failed")
			continue
		}
		r.registry.MarkHealthy(ep)
		r.log.WithField("endpoint", ep.Addr()).Info("endpoint recovered")
	}
}

// Close tears down every channel. The router is unusable afterwards.
func (r *Router) Close() {
	r.cache.Close()
	r.mu.Lock()
	r.pins = map[string]endpoint.Endpoint{}
	r.mu.Unlock()
}
