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

// Package ojp is the client driver for a fleet of database proxy servers.
// It presents the proxied databases as though the caller were talking to
// them directly, while adding multi-node failover, session-sticky request
// routing, pool-profile selection, and framed streaming for large objects.
//
// A client is built from a composite locator naming the proxy endpoints and
// the downstream database URL:
//
//	client, err := ojp.New("jdbc:ojp[a:1059,b:1059>fast]_postgresql://db:5432/app")
//	if err != nil { ... }
//	defer client.Close()
//
//	sess, err := client.Connect(ctx, ojp.ConnectConfig{User: "app"})
//
// New sessions round-robin over the healthy endpoints. Once a session
// identifier appears on a response, every later call carrying it is routed
// to the endpoint that issued it, until that endpoint fails; then the
// session is unpinned and the dispatcher fails over. Liveness is inferred
// from call outcomes only; there is no active health checking.
package ojp
