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

// Package endpoint holds the proxy server address type, the immutable
// ordered set parsed from a locator, and the mutable health registry layered
// on top of it.
package endpoint

import (
	"fmt"
	"sync"
	"time"
)

// Endpoint is the (host, port) address of one remote proxy server. It is a
// value type; two endpoints are equal when host and port are equal, which
// makes Endpoint usable as a map key.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the "host:port" form used for dialing and logging.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

func (e Endpoint) String() string {
	return e.Addr()
}

// Set is an ordered, immutable sequence of endpoints. Order is the insertion
// order from the locator. A Set is non-empty by construction: NewSet rejects
// an empty slice.
type Set struct {
	endpoints []Endpoint
}

// NewSet copies the given endpoints into an immutable Set.
func NewSet(endpoints []Endpoint) (*Set, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("endpoint set cannot be empty")
	}
	copied := make([]Endpoint, len(endpoints))
	copy(copied, endpoints)
	return &Set{endpoints: copied}, nil
}

// Len returns the number of endpoints.
func (s *Set) Len() int {
	return len(s.endpoints)
}

// Get returns the endpoint at index i in insertion order.
func (s *Set) Get(i int) Endpoint {
	return s.endpoints[i]
}

// All returns a copy of the endpoints in insertion order.
func (s *Set) All() []Endpoint {
	copied := make([]Endpoint, len(s.endpoints))
	copy(copied, s.endpoints)
	return copied
}

// Registry tracks per-endpoint health over an immutable Set. An endpoint is
// healthy until a transport failure is attributed to it; it becomes healthy
// again only when a fresh channel to it is created successfully or a call
// through a recreated channel succeeds.
type Registry struct {
	set *Set

	mu    sync.RWMutex
	state map[Endpoint]*health
}

type health struct {
	healthy     bool
	lastFailure time.Time
}

// NewRegistry returns a Registry with every endpoint of the set healthy.
func NewRegistry(set *Set) *Registry {
	state := make(map[Endpoint]*health, set.Len())
	for _, ep := range set.All() {
		state[ep] = &health{healthy: true}
	}
	return &Registry{set: set, state: state}
}

// Set returns the underlying endpoint set.
func (r *Registry) Set() *Set {
	return r.set
}

// Healthy reports whether the endpoint is currently considered healthy.
// Unknown endpoints are unhealthy.
func (r *Registry) Healthy(ep Endpoint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.state[ep]
	return ok && h.healthy
}

// HealthyEndpoints returns the healthy subset in insertion order.
func (r *Registry) HealthyEndpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	healthy := make([]Endpoint, 0, r.set.Len())
	for _, ep := range r.set.endpoints {
		if h, ok := r.state[ep]; ok && h.healthy {
			healthy = append(healthy, ep)
		}
	}
	return healthy
}

// UnhealthyEndpoints returns the unhealthy subset in insertion order.
func (r *Registry) UnhealthyEndpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	unhealthy := make([]Endpoint, 0, r.set.Len())
	for _, ep := range r.set.endpoints {
		if h, ok := r.state[ep]; ok && !h.healthy {
			unhealthy = append(unhealthy, ep)
		}
	}
	return unhealthy
}

// MarkUnhealthy flips the endpoint to unhealthy and records the failure
// time.
func (r *Registry) MarkUnhealthy(ep Endpoint, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.state[ep]; ok {
		h.healthy = false
		h.lastFailure = now
	}
}

// MarkHealthy flips the endpoint back to healthy and clears the failure
// timestamp.
func (r *Registry) MarkHealthy(ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.state[ep]; ok {
		h.healthy = true
		h.lastFailure = time.Time{}
	}
}

// LastFailure returns the time the endpoint last failed, or the zero time if
// it is healthy.
func (r *Registry) LastFailure(ep Endpoint) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.state[ep]; ok {
		return h.lastFailure
	}
	return time.Time{}
}

// RecordFailedRecovery refreshes the failure timestamp of an endpoint whose
// recovery attempt did not succeed, so the next sweep waits a full retry
// delay again.
func (r *Registry) RecordFailedRecovery(ep Endpoint, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.state[ep]; ok && !h.healthy {
		h.lastFailure = now
	}
}
