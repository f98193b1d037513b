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

	"github.com/sirupsen/logrus"

	"github.com/openjproxy/ojp-go/endpoint"
	"github.com/openjproxy/ojp-go/router"
	"github.com/openjproxy/ojp-go/wire"
)

// dispatch runs one unary operation under the retry/failover policy. The
// call closure issues the RPC on the given handle and returns the session
// object of the response, which is pinned to the endpoint that produced it.
//
// Retryable failures (transport unavailable, deadline) mark the endpoint
// unhealthy and try the next one; everything else surfaces as-is. Streaming
// operations do not go through here: session pinning already routes them to
// the owning endpoint, and a partial stream cannot be safely replayed.
func (c *Client) dispatch(ctx context.Context, sessionID, op string, call func(ctx context.Context, h *router.Handle) (*wire.SessionInfo, error)) error {
	attempts := 0
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return mapError(err, "")
		}

		ep, ok := c.router.SelectForSession(ctx, sessionID)
		if !ok {
			if c.exhausted(attempts) {
				return newError(KindNoHealthyEndpoints, "", lastErr)
			}
			attempts++
			c.countRetry(op)
			c.clock.Sleep(c.opts.retryDelay)
			continue
		}

		handle, err := c.router.Handle(ctx, ep)
		if err == nil {
			var info *wire.SessionInfo
			info, err = call(ctx, handle)
			if err == nil {
				c.router.MarkRecovered(ep)
				if id := info.GetSessionUUID(); id != "" {
					c.router.Pin(id, ep)
				}
				return nil
			}
		}

		mapped := mapError(err, ep.Addr())
		if !mapped.Retryable() || c.exhausted(attempts) {
			return mapped
		}
		lastErr = mapped
		c.router.MarkFailed(ep)
		c.countFailover(op)
		c.countRetry(op)
		c.log.WithError(mapped).WithFields(logrus.Fields{
			"op":       op,
			"endpoint": ep.Addr(),
		}).Warn("call failed, retrying on another endpoint")
		attempts++
		c.clock.Sleep(c.opts.retryDelay)
	}
}

// exhausted reports whether the attempt budget is spent. UnlimitedRetries
// disables the cap but not the delay.
func (c *Client) exhausted(attempts int) bool {
	return c.opts.retryAttempts != UnlimitedRetries && attempts >= c.opts.retryAttempts
}

// selectHandle picks the endpoint for a streaming call (no retry) and
// returns its handle.
func (c *Client) selectHandle(ctx context.Context, sessionID string) (*router.Handle, error) {
	ep, ok := c.router.SelectForSession(ctx, sessionID)
	if !ok {
		return nil, newError(KindNoHealthyEndpoints, "", nil)
	}
	handle, err := c.router.Handle(ctx, ep)
	if err != nil {
		return nil, mapError(err, ep.Addr())
	}
	return handle, nil
}

// adoptAndPin installs a response's session object and pins its identifier
// to the endpoint that produced it.
func (c *Client) adoptAndPin(sess *Session, info *wire.SessionInfo, ep endpoint.Endpoint) {
	if info == nil {
		return
	}
	sess.Adopt(info)
	if id := info.GetSessionUUID(); id != "" {
		c.router.Pin(id, ep)
	}
}
