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
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/openjproxy/ojp-go/wire"
)

// SessionCell is the mutable session value the engine stamps into every
// frame and refreshes from every response. The driver's Session type
// implements it.
type SessionCell interface {
	Current() *wire.SessionInfo
	Adopt(*wire.SessionInfo)
}

// framer is the per-family framing strategy. Most families stream a
// zero-length start frame followed by chunked data frames; H2 cannot accept
// partial streams, so its start frame carries the whole payload at once.
type framer interface {
	emitStart(p *producer) (*wire.LobDataBlock, error)
	emitData(p *producer) (*wire.LobDataBlock, error)
}

func framerFor(family wire.DbName) framer {
	if family == wire.DbH2 {
		return bulkFramer{}
	}
	return chunkedFramer{}
}

// producer turns the byte stream of the pipe into LobDataBlock frames.
// Not safe for concurrent use; the background send task is its only caller.
type producer struct {
	src      *bufio.Reader
	framer   framer
	session  SessionCell
	lobType  wire.LobType
	metadata []byte

	// basePos is the 1-based position the transfer starts at. declaredLength
	// caps the total bytes sent when non-negative.
	basePos        int64
	declaredLength int64

	transferred int64
	startSent   bool
}

func newProducer(src io.Reader, family wire.DbName, session SessionCell, lobType wire.LobType, basePos, declaredLength int64, metadata []byte) *producer {
	return &producer{
		src:            bufio.NewReader(src),
		framer:         framerFor(family),
		session:        session,
		lobType:        lobType,
		metadata:       metadata,
		basePos:        basePos,
		declaredLength: declaredLength,
	}
}

// next returns the next frame to send, or (nil, nil) when the stream of
// frames is complete.
func (p *producer) next() (*wire.LobDataBlock, error) {
	if !p.startSent {
		p.startSent = true
		return p.framer.emitStart(p)
	}
	return p.framer.emitData(p)
}

func (p *producer) block(position int64, data []byte) *wire.LobDataBlock {
	return &wire.LobDataBlock{
		Session:  p.session.Current(),
		LobType:  p.lobType,
		Position: position,
		Data:     data,
		Metadata: p.metadata,
	}
}

// trim drops trailing bytes that would push the cumulative count past the
// declared length, so the total sent equals the declaration exactly.
func (p *producer) trim(data []byte, lastBytePos int64) []byte {
	if p.declaredLength < 0 || lastBytePos <= p.declaredLength {
		return data
	}
	diff := lastBytePos - p.declaredLength
	if diff >= int64(len(data)) {
		return data[:0]
	}
	return data[:int64(len(data))-diff]
}

type chunkedFramer struct{}

func (chunkedFramer) emitStart(p *producer) (*wire.LobDataBlock, error) {
	// Zero-length start frame; carries the metadata so the server can size
	// and type the object before data arrives.
	return p.block(1, []byte{}), nil
}

func (chunkedFramer) emitData(p *producer) (*wire.LobDataBlock, error) {
	// Peek one byte to detect end-of-stream cheaply between frames.
	first, err := p.src.ReadByte()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "lob: read payload")
	}
	chunk := make([]byte, wire.MaxLobDataBlockSize)
	chunk[0] = first
	n := 1
	for n < wire.MaxLobDataBlockSize {
		read, err := p.src.Read(chunk[n:])
		n += read
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "lob: read payload")
		}
	}
	chunk = chunk[:n]

	// Position accounting advances a full block per frame, short final frame
	// included; the wire contract counts frames, not bytes.
	p.transferred += wire.MaxLobDataBlockSize
	position := p.transferred + p.basePos - wire.MaxLobDataBlockSize
	chunk = p.trim(chunk, position+int64(len(chunk))-1)
	return p.block(position, chunk), nil
}

// bulkFramer is the H2 variant: H2 does not support writing a LOB in
// several passes, so the start frame carries the entire payload.
type bulkFramer struct{}

func (bulkFramer) emitStart(p *producer) (*wire.LobDataBlock, error) {
	data, err := io.ReadAll(p.src)
	if err != nil {
		return nil, errors.Wrap(err, "lob: read payload")
	}
	p.transferred += wire.MaxLobDataBlockSize
	position := p.transferred + p.basePos - wire.MaxLobDataBlockSize
	data = p.trim(data, position+int64(len(data))-1)
	return p.block(position, data), nil
}

func (bulkFramer) emitData(*producer) (*wire.LobDataBlock, error) {
	return nil, nil
}
