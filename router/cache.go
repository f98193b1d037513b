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

package router

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/openjproxy/ojp-go/endpoint"
	"github.com/openjproxy/ojp-go/wire"
)

// Handle pairs the transport channel to one endpoint with the call stub
// bound to it. At most one Handle exists per endpoint at any time; the
// ChannelCache owns that invariant.
type Handle struct {
	Endpoint endpoint.Endpoint
	Client   wire.StatementServiceClient

	channel io.Closer
}

// NewHandle wraps a stub and its underlying channel. The channel may be nil
// for test fakes.
func NewHandle(ep endpoint.Endpoint, client wire.StatementServiceClient, channel io.Closer) *Handle {
	return &Handle{Endpoint: ep, Client: client, channel: channel}
}

// Close shuts the underlying channel down.
func (h *Handle) Close() error {
	if h.channel == nil {
		return nil
	}
	return h.channel.Close()
}

// DialFunc creates a Handle for an endpoint. The default implementation
// opens a plaintext gRPC channel; tests substitute fakes.
type DialFunc func(ctx context.Context, ep endpoint.Endpoint) (*Handle, error)

// entry life cycle: creating (done open) -> ready or failed (done closed);
// evicted at any point. A failed or evicted entry is removed from the map,
// so the next Get dials fresh.
type cacheEntry struct {
	done    chan struct{}
	handle  *Handle
	err     error
	evicted bool
}

// ChannelCache lazily creates and caches one Handle per endpoint.
// Get-or-create is atomic per endpoint: concurrent lookups of the same
// endpoint share a single dial, and eviction during a dial closes the
// resulting handle instead of leaking it.
type ChannelCache struct {
	dial DialFunc

	mu      sync.Mutex
	entries map[endpoint.Endpoint]*cacheEntry
	closed  bool
}

// NewChannelCache returns an empty cache dialing through dial.
func NewChannelCache(dial DialFunc) *ChannelCache {
	return &ChannelCache{
		dial:    dial,
		entries: map[endpoint.Endpoint]*cacheEntry{},
	}
}

// Get returns the cached Handle for ep, dialing one if absent.
func (c *ChannelCache) Get(ctx context.Context, ep endpoint.Endpoint) (*Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errCacheClosed
	}
	if entry, ok := c.entries[ep]; ok {
		c.mu.Unlock()
		select {
		case <-entry.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if entry.err != nil {
			return nil, entry.err
		}
		return entry.handle, nil
	}
	entry := &cacheEntry{done: make(chan struct{})}
	c.entries[ep] = entry
	c.mu.Unlock()

	handle, err := c.dial(ctx, ep)

	c.mu.Lock()
	entry.handle = handle
	entry.err = err
	if err != nil || entry.evicted || c.closed {
		// Failed, evicted mid-dial, or cache shut down: drop the entry so the
		// next Get dials fresh, and close whatever was created.
		if c.entries[ep] == entry {
			delete(c.entries, ep)
		}
		if handle != nil {
			_ = handle.Close()
			if err == nil {
				entry.err = errHandleEvicted
			}
		}
	}
	c.mu.Unlock()
	close(entry.done)

	if entry.err != nil {
		return nil, entry.err
	}
	return handle, nil
}

// Evict removes the endpoint's Handle, shutting its channel down. A dial in
// flight for the endpoint is marked evicted and its handle is closed on
// arrival.
func (c *ChannelCache) Evict(ep endpoint.Endpoint) {
	c.mu.Lock()
	entry, ok := c.entries[ep]
	if ok {
		entry.evicted = true
		select {
		case <-entry.done:
			// Fully created: remove and close below.
			delete(c.entries, ep)
		default:
			// Still dialing: the dialer observes evicted and cleans up.
			entry = nil
		}
	}
	c.mu.Unlock()
	if ok && entry != nil && entry.handle != nil {
		_ = entry.handle.Close()
	}
}

// Contains reports whether a ready or in-flight Handle exists for ep.
func (c *ChannelCache) Contains(ep endpoint.Endpoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[ep]
	return ok
}

// Close evicts every Handle and rejects further lookups.
func (c *ChannelCache) Close() {
	c.mu.Lock()
	c.closed = true
	var ready []*Handle
	for ep, entry := range c.entries {
		entry.evicted = true
		select {
		case <-entry.done:
			if entry.handle != nil {
				ready = append(ready, entry.handle)
			}
			delete(c.entries, ep)
		default:
			// Still dialing: the dialer observes closed and cleans up.
		}
	}
	c.mu.Unlock()
	for _, handle := range ready {
		_ = handle.Close()
	}
}

var (
	errCacheClosed   = errors.New("channel cache is closed")
	errHandleEvicted = errors.New("channel evicted while being created")
)
