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
	"errors"
	"io"

	"google.golang.org/grpc"

	"github.com/openjproxy/ojp-go/router"
	"github.com/openjproxy/ojp-go/serde"
	"github.com/openjproxy/ojp-go/wire"
)

// isStreamEnd reports the normal completion of a server stream.
func isStreamEnd(err error) bool {
	return errors.Is(err, io.EOF)
}

// StatementOptions tune one statement execution.
type StatementOptions struct {
	// StatementID names a server-held prepared statement to execute, or ""
	// for a one-shot statement.
	StatementID string

	// Properties is the per-statement property map (batch flags, result-set
	// type, generated-keys options, ...); see the wire.Property* keys.
	Properties map[string]any
}

func (o *StatementOptions) statementID() string {
	if o == nil {
		return ""
	}
	return o.StatementID
}

func (o *StatementOptions) properties() map[string]any {
	if o == nil {
		return nil
	}
	return o.Properties
}

func (c *Client) statementRequest(sess *Session, sql string, params []serde.Parameter, opts *StatementOptions) (*wire.StatementRequest, error) {
	paramBytes, err := serde.MarshalParams(params)
	if err != nil {
		return nil, err
	}
	propBytes, err := serde.MarshalProperties(opts.properties())
	if err != nil {
		return nil, err
	}
	return &wire.StatementRequest{
		Session:       sess.Current(),
		StatementUUID: opts.statementID(),
		Sql:           sql,
		Parameters:    paramBytes,
		Properties:    propBytes,
	}, nil
}

// ExecuteUpdate runs DML/DDL on the session's endpoint and returns the
// server's result.
func (c *Client) ExecuteUpdate(ctx context.Context, sess *Session, sql string, params []serde.Parameter, opts *StatementOptions) (*wire.OpResult, error) {
	req, err := c.statementRequest(sess, sql, params, opts)
	if err != nil {
		return nil, err
	}
	var result *wire.OpResult
	err = c.dispatch(ctx, sess.ID(), "executeUpdate", func(ctx context.Context, h *router.Handle) (*wire.SessionInfo, error) {
		req.Session = sess.Current()
		resp, err := h.Client.ExecuteUpdate(ctx, req)
		if err != nil {
			return nil, err
		}
		result = resp
		sess.Adopt(resp.GetSession())
		return resp.GetSession(), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteQuery runs a query and returns the stream of result pages. The
// stream is issued once on the session's endpoint and is not retried: a
// partial result stream cannot be safely replayed.
func (c *Client) ExecuteQuery(ctx context.Context, sess *Session, sql string, params []serde.Parameter, opts *StatementOptions) (*ResultStream, error) {
	req, err := c.statementRequest(sess, sql, params, opts)
	if err != nil {
		return nil, err
	}
	handle, err := c.selectHandle(ctx, sess.ID())
	if err != nil {
		return nil, err
	}
	stream, err := handle.Client.ExecuteQuery(ctx, req)
	if err != nil {
		return nil, mapError(err, handle.Endpoint.Addr())
	}
	return &ResultStream{c: c, sess: sess, handle: handle, stream: stream}, nil
}

// ResultStream iterates the OpResult pages of a query. Not safe for
// concurrent use.
type ResultStream struct {
	c      *Client
	sess   *Session
	handle *router.Handle
	stream wire.StatementService_ExecuteQueryClient
}

// Next returns the next result page. It returns io.EOF when the server
// completes the stream.
func (rs *ResultStream) Next() (*wire.OpResult, error) {
	result, err := rs.stream.Recv()
	if err != nil {
		if isStreamEnd(err) {
			return nil, err
		}
		return nil, mapError(err, rs.handle.Endpoint.Addr())
	}
	rs.c.adoptAndPin(rs.sess, result.GetSession(), rs.handle.Endpoint)
	return result, nil
}

// FetchNextRows pulls the next page of a server-held result set. A
// non-positive size requests the default batch of
// wire.RowsPerResultSetDataBlock rows.
func (c *Client) FetchNextRows(ctx context.Context, sess *Session, resultSetID string, size int32) (*wire.OpResult, error) {
	if size <= 0 {
		size = wire.RowsPerResultSetDataBlock
	}
	var result *wire.OpResult
	err := c.dispatch(ctx, sess.ID(), "fetchNextRows", func(ctx context.Context, h *router.Handle) (*wire.SessionInfo, error) {
		resp, err := h.Client.FetchNextRows(ctx, &wire.ResultSetFetchRequest{
			Session:       sess.Current(),
			ResultSetUUID: resultSetID,
			Size:          size,
		})
		if err != nil {
			return nil, err
		}
		result = resp
		sess.Adopt(resp.GetSession())
		return resp.GetSession(), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StartTransaction begins a transaction on the session.
func (c *Client) StartTransaction(ctx context.Context, sess *Session) error {
	return c.transactionOp(ctx, sess, "startTransaction", wire.StatementServiceClient.StartTransaction)
}

// CommitTransaction commits the session's transaction.
func (c *Client) CommitTransaction(ctx context.Context, sess *Session) error {
	return c.transactionOp(ctx, sess, "commitTransaction", wire.StatementServiceClient.CommitTransaction)
}

// RollbackTransaction rolls the session's transaction back.
func (c *Client) RollbackTransaction(ctx context.Context, sess *Session) error {
	return c.transactionOp(ctx, sess, "rollbackTransaction", wire.StatementServiceClient.RollbackTransaction)
}

func (c *Client) transactionOp(ctx context.Context, sess *Session, op string, call func(wire.StatementServiceClient, context.Context, *wire.SessionInfo, ...grpc.CallOption) (*wire.SessionInfo, error)) error {
	return c.dispatch(ctx, sess.ID(), op, func(ctx context.Context, h *router.Handle) (*wire.SessionInfo, error) {
		resp, err := call(h.Client, ctx, sess.Current())
		if err != nil {
			return nil, err
		}
		sess.Adopt(resp)
		return resp, nil
	})
}

// TerminateSession drops the session's endpoint pin and asks the server to
// release its state. The release runs in the background; failures are
// logged, not returned, matching the fire-and-forget close semantics of
// connection teardown.
func (c *Client) TerminateSession(ctx context.Context, sess *Session) {
	id := sess.ID()
	if id == "" {
		return
	}
	info := sess.Current()
	// Resolve the owning endpoint before dropping the pin, so the release
	// lands where the session state lives.
	handle, err := c.selectHandle(ctx, id)
	c.router.Unpin(id)
	if err != nil {
		c.log.WithError(err).WithField("session", id).Warn("session termination skipped")
		return
	}
	go func() {
		if _, err := handle.Client.TerminateSession(ctx, info); err != nil {
			c.log.WithError(mapError(err, handle.Endpoint.Addr())).
				WithField("session", id).
				Warn("session termination failed")
		}
	}()
}
