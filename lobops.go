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

	"github.com/openjproxy/ojp-go/lob"
	"github.com/openjproxy/ojp-go/wire"
)

// LobWriter is the byte sink of a LOB write. Bytes written stream to the
// session's endpoint on a background task; Close awaits the server's final
// reference and validates it.
type LobWriter struct {
	c     *Client
	inner *lob.Writer
}

// NewLobWriter starts a LOB write on the session's endpoint. The metadata
// map is slot-keyed (see wire.Metadata*); when the
// wire.MetadataBinaryStreamLength slot declares a length, the engine trims
// the framed total to it.
//
// LOB streams are not retried across endpoints: the session pin routes them
// to the owning endpoint, and a partial stream cannot be safely replayed.
func (c *Client) NewLobWriter(ctx context.Context, sess *Session, lobType wire.LobType, metadata map[int]any) (*LobWriter, error) {
	handle, err := c.selectHandle(ctx, sess.ID())
	if err != nil {
		return nil, err
	}
	c.log.WithField("endpoint", handle.Endpoint.Addr()).Debug("creating lob")
	open := func(ctx context.Context) (lob.CreateStream, error) {
		stream, err := handle.Client.CreateLob(ctx)
		if err != nil {
			return nil, mapError(err, handle.Endpoint.Addr())
		}
		return stream, nil
	}
	inner, err := lob.NewWriter(ctx, open, lob.WriterConfig{
		Session:  sess,
		Family:   sess.Family(),
		LobType:  lobType,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}
	return &LobWriter{c: c, inner: inner}, nil
}

// Write feeds payload bytes to the background sender.
func (w *LobWriter) Write(p []byte) (int, error) {
	n, err := w.inner.Write(p)
	w.c.countLobSent(n)
	return n, err
}

// Close flushes the stream, awaits the final reference, and validates it.
// Failures carry the phase that failed (send, validate, refresh-session).
func (w *LobWriter) Close() error {
	if err := w.inner.Close(); err != nil {
		return mapError(err, "")
	}
	return nil
}

// Reference returns the final reference of the completed write, blocking
// until the write finishes or fails.
func (w *LobWriter) Reference(ctx context.Context) (*wire.LobReference, error) {
	ref, err := w.inner.Reference(ctx)
	if err != nil {
		return nil, mapError(err, "")
	}
	return ref, nil
}

// LobReader is the byte source of a LOB read: finite and non-restartable.
type LobReader struct {
	c     *Client
	inner *lob.Reader
}

// NewLobReader reads the referenced LOB from the 1-based position up to and
// including the absolute position length. Blocks are fetched lazily in two-block windows as the
// reader drains; each fetch routes to the endpoint owning the session.
func (c *Client) NewLobReader(ctx context.Context, sess *Session, ref *wire.LobReference, position, length int64) (*LobReader, error) {
	if ref.GetUuid() == "" {
		return nil, newError(KindLobReferenceMissing, "", lob.ErrReferenceMissing)
	}
	fetch := func(ctx context.Context, pos int64, length int32) (lob.BlockStream, error) {
		handle, err := c.selectHandle(ctx, sess.ID())
		if err != nil {
			return nil, err
		}
		stream, err := handle.Client.ReadLob(ctx, &wire.ReadLobRequest{
			LobReference: &wire.LobReference{
				Session: sess.Current(),
				Uuid:    ref.GetUuid(),
				LobType: ref.LobType,
			},
			Position: pos,
			Length:   length,
		})
		if err != nil {
			return nil, mapError(err, handle.Endpoint.Addr())
		}
		return stream, nil
	}
	return &LobReader{c: c, inner: lob.NewReader(ctx, fetch, position, length)}, nil
}

// Read implements io.Reader over the LOB byte range.
func (r *LobReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	r.c.countLobReceived(n)
	if err != nil && !isStreamEnd(err) {
		return n, mapError(err, "")
	}
	return n, err
}
