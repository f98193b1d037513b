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

package lob

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/openjproxy/ojp-go/wire"
)

// BlockStream is the receive side of a LOB read RPC.
// wire.StatementService_ReadLobClient satisfies it; tests use fakes.
type BlockStream interface {
	Recv() (*wire.LobDataBlock, error)
}

// FetchFunc requests length bytes of the LOB starting at the given 1-based
// position, routed to the endpoint owning the session.
type FetchFunc func(ctx context.Context, position int64, length int32) (BlockStream, error)

// twoBlocks is the fetch window: the engine always requests the next pair
// of blocks, mirroring the server's pacing.
const twoBlocks = 2 * wire.MaxLobDataBlockSize

// eofByte is the in-band end-of-block sentinel. Payload bytes pass through
// a widening int conversion, so a raw 0xFF byte can never collide with it.
const eofByte = -1

// Reader is the byte source of a LOB read: a finite, non-restartable
// sequence of octets. It maintains an absolute position cursor and fetches
// the next two-block window whenever the block in hand is exhausted, unless
// the exhaustion pattern indicates the final block has been consumed.
//
// Not safe for concurrent use.
type Reader struct {
	ctx    context.Context //nolint:containedctx
	fetch  FetchFunc
	length int64

	pos    int64
	blocks *blockCursor
}

// NewReader returns a Reader that starts at position (1-based, inclusive)
// and stops once its cursor reaches the absolute position length, so it
// yields the bytes at positions position..length of a stored LOB.
func NewReader(ctx context.Context, fetch FetchFunc, position, length int64) *Reader {
	return &Reader{
		ctx:    ctx,
		fetch:  fetch,
		length: length,
		pos:    position - 1,
	}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := r.readByte()
		if err != nil {
			return n, err
		}
		if b == eofByte {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		p[n] = byte(b)
		n++
	}
	return n, nil
}

// readByte returns the next payload byte or the eofByte sentinel.
func (r *Reader) readByte() (int, error) {
	if r.pos >= r.length {
		return eofByte, nil
	}

	b := eofByte
	if r.blocks != nil {
		var err error
		b, err = r.blocks.readByte()
		if err != nil {
			return eofByte, err
		}
	}
	// A block exhausted off a two-block boundary is the final block: no more
	// data is coming. Exactly at the boundary the server may have more, so
	// another fetch is required.
	lastBlockReached := r.blocks != nil && b == eofByte && r.pos > 1 && r.pos%twoBlocks != 0
	if b != eofByte {
		r.pos++
		return b, nil
	}
	if lastBlockReached {
		return eofByte, nil
	}

	stream, err := r.fetch(r.ctx, r.pos+1, twoBlocks)
	if err != nil {
		return eofByte, err
	}
	cursor, err := newBlockCursor(stream)
	if err != nil {
		return eofByte, err
	}
	if cursor == nil {
		// First block with position -1 and no payload: immediately empty.
		return eofByte, nil
	}
	r.blocks = cursor
	b, err = cursor.readByte()
	if err != nil || b == eofByte {
		return eofByte, err
	}
	r.pos++
	return b, nil
}

// blockCursor walks the frames of one fetched window byte by byte.
type blockCursor struct {
	stream  BlockStream
	current []byte
	idx     int
	done    bool
}

// ErrBadFrame reports a block whose framing the engine cannot interpret.
var ErrBadFrame = errors.New("invalid lob block framing")

// newBlockCursor reads the first frame eagerly. A first frame with position
// -1 and an empty payload signals an empty stream; the cursor is nil then.
func newBlockCursor(stream BlockStream) (*blockCursor, error) {
	block, err := stream.Recv()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if block.Position == -1 && len(block.GetData()) < 1 {
		return nil, nil
	}
	if block.Position < 1 {
		return nil, errors.Wrapf(ErrBadFrame, "first block at position %d", block.Position)
	}
	return &blockCursor{stream: stream, current: block.GetData()}, nil
}

func (c *blockCursor) readByte() (int, error) {
	for c.idx >= len(c.current) {
		if c.done {
			return eofByte, nil
		}
		block, err := c.stream.Recv()
		if err == io.EOF {
			c.done = true
			return eofByte, nil
		}
		if err != nil {
			return eofByte, err
		}
		c.current = block.GetData()
		c.idx = 0
	}
	b := c.current[c.idx]
	c.idx++
	return int(b), nil
}
