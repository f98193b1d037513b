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
	"sync"

	"github.com/openjproxy/ojp-go/wire"
)

// refSlot is a write-once cell holding a LobReference or an error. The
// write path resolves it twice over the life of a stream: one slot for the
// first reference the server acks, one for the final reference at stream
// completion. Later resolutions are ignored.
type refSlot struct {
	once sync.Once
	done chan struct{}
	ref  *wire.LobReference
	err  error
}

func newRefSlot() *refSlot {
	return &refSlot{done: make(chan struct{})}
}

func (s *refSlot) resolve(ref *wire.LobReference, err error) {
	s.once.Do(func() {
		s.ref = ref
		s.err = err
		close(s.done)
	})
}

// wait blocks until the slot resolves or ctx is done.
func (s *refSlot) wait(ctx context.Context) (*wire.LobReference, error) {
	select {
	case <-s.done:
		return s.ref, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
