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

package lob_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjproxy/ojp-go/lob"
	"github.com/openjproxy/ojp-go/wire"
)

type fakeSession struct {
	mu   sync.Mutex
	info *wire.SessionInfo
}

func (s *fakeSession) Current() *wire.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *fakeSession) Adopt(info *wire.SessionInfo) {
	if info == nil {
		return
	}
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

// fakeCreateStream acks the first frame with a reference, and the stream
// completion with the final reference, like the server does.
type fakeCreateStream struct {
	mu      sync.Mutex
	blocks  []*wire.LobDataBlock
	refs    chan *wire.LobReference
	uuid    string
	sendErr error
}

func newFakeCreateStream(uuid string) *fakeCreateStream {
	return &fakeCreateStream{
		refs: make(chan *wire.LobReference, 64),
		uuid: uuid,
	}
}

func (s *fakeCreateStream) ref() *wire.LobReference {
	return &wire.LobReference{
		Session: &wire.SessionInfo{SessionUUID: "s1", DbName: wire.DbPostgres},
		Uuid:    s.uuid,
	}
}

func (s *fakeCreateStream) Send(block *wire.LobDataBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.blocks = append(s.blocks, block)
	if len(s.blocks) == 1 {
		s.refs <- s.ref()
	}
	return nil
}

func (s *fakeCreateStream) CloseSend() error {
	s.refs <- s.ref()
	close(s.refs)
	return nil
}

func (s *fakeCreateStream) Recv() (*wire.LobReference, error) {
	ref, ok := <-s.refs
	if !ok {
		return nil, io.EOF
	}
	return ref, nil
}

func (s *fakeCreateStream) sentBlocks() []*wire.LobDataBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*wire.LobDataBlock(nil), s.blocks...)
}

func pattern(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	return payload
}

func writeLob(t *testing.T, stream *fakeCreateStream, family wire.DbName, payload []byte, metadata map[int]any) error {
	t.Helper()
	sess := &fakeSession{info: &wire.SessionInfo{SessionUUID: "s1", DbName: family}}
	writer, err := lob.NewWriter(context.Background(),
		func(context.Context) (lob.CreateStream, error) { return stream, nil },
		lob.WriterConfig{
			Session:  sess,
			Family:   family,
			LobType:  wire.LobTypeBinary,
			Metadata: metadata,
		})
	require.NoError(t, err)
	if len(payload) > 0 {
		if _, werr := writer.Write(payload); werr != nil {
			if cerr := writer.Close(); cerr != nil {
				return cerr
			}
			return werr
		}
	}
	return writer.Close()
}

func TestWriteFramingGrid(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 1, 1023, 1024, 1025, 2048, 2049, 1 << 20} {
		n := n
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()
			payload := pattern(n)
			stream := newFakeCreateStream("lob-1")
			require.NoError(t, writeLob(t, stream, wire.DbPostgres, payload, nil))

			blocks := stream.sentBlocks()
			wantData := (n + wire.MaxLobDataBlockSize - 1) / wire.MaxLobDataBlockSize
			require.Len(t, blocks, 1+wantData)

			// Start frame: empty payload at position 1.
			assert.Equal(t, int64(1), blocks[0].Position)
			assert.Empty(t, blocks[0].GetData())

			got := []byte{}
			for i, block := range blocks[1:] {
				assert.Equal(t, int64(1+i*wire.MaxLobDataBlockSize), block.Position)
				got = append(got, block.GetData()...)
			}
			assert.Equal(t, payload, got)
		})
	}
}

func TestWriteFrameSequence2500(t *testing.T) {
	t.Parallel()
	stream := newFakeCreateStream("lob-1")
	require.NoError(t, writeLob(t, stream, wire.DbPostgres, pattern(2500), nil))

	blocks := stream.sentBlocks()
	require.Len(t, blocks, 4)
	type frame struct {
		pos int64
		n   int
	}
	got := make([]frame, len(blocks))
	for i, block := range blocks {
		got[i] = frame{block.Position, len(block.GetData())}
	}
	assert.Equal(t, []frame{{1, 0}, {1, 1024}, {1025, 1024}, {2049, 452}}, got)
}

func TestWriteH2BulkFrame(t *testing.T) {
	t.Parallel()
	payload := pattern(5000)
	stream := newFakeCreateStream("lob-1")
	require.NoError(t, writeLob(t, stream, wire.DbH2, payload, map[int]any{wire.MetadataBinaryStreamIndex: 1}))

	// H2 cannot take partial streams: one frame carries everything.
	blocks := stream.sentBlocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, int64(1), blocks[0].Position)
	assert.Equal(t, payload, blocks[0].GetData())
	assert.NotEmpty(t, blocks[0].Metadata)
}

func TestWriteH2EmptyPayload(t *testing.T) {
	t.Parallel()
	stream := newFakeCreateStream("lob-1")
	require.NoError(t, writeLob(t, stream, wire.DbH2, nil, nil))

	blocks := stream.sentBlocks()
	require.Len(t, blocks, 1)
	assert.Empty(t, blocks[0].GetData())
}

func TestWriteTrimsToDeclaredLength(t *testing.T) {
	t.Parallel()
	stream := newFakeCreateStream("lob-1")
	metadata := map[int]any{wire.MetadataBinaryStreamLength: int64(1500)}
	require.NoError(t, writeLob(t, stream, wire.DbPostgres, pattern(2000), metadata))

	blocks := stream.sentBlocks()
	total := 0
	for _, block := range blocks {
		total += len(block.GetData())
	}
	assert.Equal(t, 1500, total)
}

func TestCloseFailsWithoutReferenceIdentifier(t *testing.T) {
	t.Parallel()
	stream := newFakeCreateStream("") // server never issues a usable UUID
	err := writeLob(t, stream, wire.DbPostgres, pattern(10), nil)
	require.Error(t, err)

	var closeErr *lob.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, lob.PhaseValidate, closeErr.Phase)
	assert.True(t, errors.Is(err, lob.ErrReferenceMissing))
}

func TestSendFailureSurfacesOnClose(t *testing.T) {
	t.Parallel()
	stream := newFakeCreateStream("lob-1")
	stream.sendErr = errors.New("transport torn down")
	err := writeLob(t, stream, wire.DbPostgres, pattern(10), nil)
	require.Error(t, err)

	var closeErr *lob.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, lob.PhaseSend, closeErr.Phase)
}

func TestOpenFailureSurfaces(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{info: &wire.SessionInfo{SessionUUID: "s1"}}
	writer, err := lob.NewWriter(context.Background(),
		func(context.Context) (lob.CreateStream, error) { return nil, errors.New("no stream") },
		lob.WriterConfig{Session: sess, Family: wire.DbPostgres, LobType: wire.LobTypeBinary})
	require.NoError(t, err)
	err = writer.Close()
	require.Error(t, err)
}

func TestWriterRefreshesSessionFromReferences(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{info: &wire.SessionInfo{SessionUUID: "stale"}}
	stream := newFakeCreateStream("lob-1")
	writer, err := lob.NewWriter(context.Background(),
		func(context.Context) (lob.CreateStream, error) { return stream, nil },
		lob.WriterConfig{Session: sess, Family: wire.DbPostgres, LobType: wire.LobTypeBinary})
	require.NoError(t, err)
	_, err = writer.Write(pattern(10))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	assert.Equal(t, "s1", sess.Current().GetSessionUUID())

	ref, err := writer.Reference(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lob-1", ref.GetUuid())
}
