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
	"sync"

	"github.com/openjproxy/ojp-go/wire"
)

// Session is the caller's handle on one logical database connection. The
// identifier stays stable for the life of the session; the server may
// replace the associated state with every response, and each response's
// session object is adopted here under a last-response-wins rule.
//
// The session value cell is safe for concurrent use, but no ordering is
// guaranteed between concurrent callers sharing a session; serialize your
// own use if you need it.
type Session struct {
	mu   sync.RWMutex
	info *wire.SessionInfo

	// fallbackFamily is derived from the downstream locator and used until
	// the server reports the authoritative family.
	fallbackFamily wire.DbName
}

func newSession(info *wire.SessionInfo, fallbackFamily wire.DbName) *Session {
	return &Session{info: info, fallbackFamily: fallbackFamily}
}

// ID returns the stable session identifier, or "" pre-connection.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.GetSessionUUID()
}

// Current returns the session object to attach to the next request. The
// returned value is treated as immutable.
func (s *Session) Current() *wire.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Adopt installs the replacement session object carried by a response.
// A nil replacement is ignored.
func (s *Session) Adopt(info *wire.SessionInfo) {
	if info == nil {
		return
	}
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

// Family returns the database family of the session: the server-reported
// value when known, else the family detected from the downstream locator.
func (s *Session) Family() wire.DbName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f := s.info.GetDbName(); f != wire.DbUnknown {
		return f
	}
	return s.fallbackFamily
}
