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

	"github.com/openjproxy/ojp-go/router"
	"github.com/openjproxy/ojp-go/serde"
	"github.com/openjproxy/ojp-go/wire"
)

// ResourceCall describes one operation on a server-side resource: the
// resource kind and identifier, the verb, the member name, and the
// parameter list.
type ResourceCall struct {
	ResourceType wire.ResourceType
	ResourceID   string
	CallType     wire.CallType
	Member       string
	Params       []any
}

// CallResource invokes an operation on a named server-side resource through
// the session's endpoint and returns the serialized return value. Callers
// that expect no return value ignore the bytes; typed callers decode them
// with ResourceValue.
func (c *Client) CallResource(ctx context.Context, sess *Session, call ResourceCall) ([]byte, error) {
	params, err := serde.Marshal(call.Params)
	if err != nil {
		return nil, err
	}
	req := &wire.CallResourceRequest{
		ResourceType: call.ResourceType,
		ResourceUUID: call.ResourceID,
		Target: &wire.TargetCall{
			CallType:     call.CallType,
			ResourceName: call.Member,
			Params:       params,
		},
	}
	var values []byte
	err = c.dispatch(ctx, sess.ID(), "callResource", func(ctx context.Context, h *router.Handle) (*wire.SessionInfo, error) {
		req.Session = sess.Current()
		resp, err := h.Client.CallResource(ctx, req)
		if err != nil {
			return nil, err
		}
		values = resp.Values
		sess.Adopt(resp.GetSession())
		return resp.GetSession(), nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// ResourceValue invokes a resource call and decodes its return value into T.
func ResourceValue[T any](ctx context.Context, c *Client, sess *Session, call ResourceCall) (T, error) {
	values, err := c.CallResource(ctx, sess, call)
	if err != nil {
		var zero T
		return zero, err
	}
	return serde.UnmarshalValue[T](values)
}

// LobLength asks the server for the stored length of a LOB.
func (c *Client) LobLength(ctx context.Context, sess *Session, lobID string) (int64, error) {
	return ResourceValue[int64](ctx, c, sess, ResourceCall{
		ResourceType: wire.ResourceLob,
		ResourceID:   lobID,
		CallType:     wire.CallLength,
	})
}

// FreeLob releases a server-held LOB.
func (c *Client) FreeLob(ctx context.Context, sess *Session, lobID string) error {
	_, err := c.CallResource(ctx, sess, ResourceCall{
		ResourceType: wire.ResourceLob,
		ResourceID:   lobID,
		CallType:     wire.CallFree,
	})
	return err
}

// SavepointID returns the numeric identifier of a server-held savepoint.
func (c *Client) SavepointID(ctx context.Context, sess *Session, savepointID string) (int, error) {
	return ResourceValue[int](ctx, c, sess, ResourceCall{
		ResourceType: wire.ResourceSavepoint,
		ResourceID:   savepointID,
		CallType:     wire.CallGet,
		Member:       "getSavepointId",
	})
}

// SavepointName returns the name of a server-held savepoint.
func (c *Client) SavepointName(ctx context.Context, sess *Session, savepointID string) (string, error) {
	return ResourceValue[string](ctx, c, sess, ResourceCall{
		ResourceType: wire.ResourceSavepoint,
		ResourceID:   savepointID,
		CallType:     wire.CallGet,
		Member:       "getSavepointName",
	})
}
