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

// Package wire defines the messages and the client stub of the proxy
// protocol. The message set mirrors ojp.proto in this directory; the stub is
// hand-maintained (client side only) on top of the raw grpc.ClientConn call
// surface, so the module does not depend on a code-generation step.
package wire
