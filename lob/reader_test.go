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
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjproxy/ojp-go/lob"
	"github.com/openjproxy/ojp-go/wire"
)

// fakeLobStore serves fetches from an in-memory byte slice the way the
// server does: frames of at most one block, an explicit empty-stream
// sentinel when the range is past the end.
type fakeLobStore struct {
	mu      sync.Mutex
	data    []byte
	fetches int
}

func (s *fakeLobStore) fetch(_ context.Context, position int64, length int32) (lob.BlockStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++

	start := position - 1
	if start < 0 || start >= int64(len(s.data)) {
		return &fakeBlockStream{blocks: []*wire.LobDataBlock{{Position: -1}}}, nil
	}
	end := start + int64(length)
	if end > int64(len(s.data)) {
		end = int64(len(s.data))
	}
	var blocks []*wire.LobDataBlock
	for pos := start; pos < end; pos += wire.MaxLobDataBlockSize {
		blockEnd := pos + wire.MaxLobDataBlockSize
		if blockEnd > end {
			blockEnd = end
		}
		blocks = append(blocks, &wire.LobDataBlock{
			Position: pos + 1,
			Data:     s.data[pos:blockEnd],
		})
	}
	return &fakeBlockStream{blocks: blocks}, nil
}

func (s *fakeLobStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

type fakeBlockStream struct {
	blocks []*wire.LobDataBlock
	idx    int
}

func (s *fakeBlockStream) Recv() (*wire.LobDataBlock, error) {
	if s.idx >= len(s.blocks) {
		return nil, io.EOF
	}
	block := s.blocks[s.idx]
	s.idx++
	return block, nil
}

func TestReadRoundTripGrid(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 1, 1023, 1024, 1025, 2048, 2049, 1 << 20} {
		n := n
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()
			store := &fakeLobStore{data: pattern(n)}
			reader := lob.NewReader(context.Background(), store.fetch, 1, int64(n))
			got, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Equal(t, pattern(n), got)
		})
	}
}

func TestReadHighBytesDoNotTerminateEarly(t *testing.T) {
	t.Parallel()
	// 0xFF payload bytes must pass through the widening unharmed instead of
	// colliding with the end-of-block sentinel.
	data := bytes.Repeat([]byte{0xFF}, 3000)
	store := &fakeLobStore{data: data}
	reader := lob.NewReader(context.Background(), store.fetch, 1, int64(len(data)))
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadEmptyStreamSentinel(t *testing.T) {
	t.Parallel()
	store := &fakeLobStore{}
	reader := lob.NewReader(context.Background(), store.fetch, 1, 10)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, store.fetchCount())
}

func TestReadStopsWithoutRefetchOffBoundary(t *testing.T) {
	t.Parallel()
	// 1500 stored bytes end mid-window: exhaustion off the two-block
	// boundary means the final block was consumed, no extra fetch.
	store := &fakeLobStore{data: pattern(1500)}
	reader := lob.NewReader(context.Background(), store.fetch, 1, 9999)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, pattern(1500), got)
	assert.Equal(t, 1, store.fetchCount())
}

func TestReadRefetchesAtExactBoundary(t *testing.T) {
	t.Parallel()
	// Exactly at a two-block boundary the engine must assume the server has
	// more and fetch again; the second fetch returns the empty sentinel.
	store := &fakeLobStore{data: pattern(2048)}
	reader := lob.NewReader(context.Background(), store.fetch, 1, 9999)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, pattern(2048), got)
	assert.Equal(t, 2, store.fetchCount())
}

func TestReadFromOffset(t *testing.T) {
	t.Parallel()
	data := pattern(4096)
	store := &fakeLobStore{data: data}
	// Cursor semantics are absolute: reading from position 1025 up to
	// position 2048 yields the second kibibyte.
	reader := lob.NewReader(context.Background(), store.fetch, 1025, 2048)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data[1024:2048], got)
}

func TestReadRejectsBadFraming(t *testing.T) {
	t.Parallel()
	fetch := func(context.Context, int64, int32) (lob.BlockStream, error) {
		return &fakeBlockStream{blocks: []*wire.LobDataBlock{{Position: 0, Data: []byte{1}}}}, nil
	}
	reader := lob.NewReader(context.Background(), fetch, 1, 10)
	_, err := io.ReadAll(reader)
	require.Error(t, err)
	assert.ErrorIs(t, err, lob.ErrBadFrame)
}

func TestReadWindowsAreTwoBlocks(t *testing.T) {
	t.Parallel()
	store := &fakeLobStore{data: pattern(5000)}
	reader := lob.NewReader(context.Background(), store.fetch, 1, 5000)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, pattern(5000), got)
	// 5000 bytes = 2048 + 2048 + 904: three windows.
	assert.Equal(t, 3, store.fetchCount())
}
