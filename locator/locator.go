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

// Package locator parses composite proxy locators of the form
//
//	<scheme>:ojp[host1:port1,host2:port2>profile]_<downstream-locator>
//
// into the endpoint list, the optional pool profile name, and the downstream
// database locator the remote server should use.
package locator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/openjproxy/ojp-go/endpoint"
	"github.com/openjproxy/ojp-go/wire"
)

// DefaultPoolProfile is returned by ExtractPoolProfile when the locator does
// not name a profile.
const DefaultPoolProfile = "default"

var (
	// proxyPattern extracts the bracketed endpoint list. The bracket content
	// never contains ']', so a single negated-class group suffices.
	proxyPattern = regexp.MustCompile(`ojp\[([^\]]+)\]`)

	// profilePattern additionally splits off the ">profile" suffix inside the
	// brackets.
	profilePattern = regexp.MustCompile(`ojp\[([^>\]]+)(?:>([^\]]+))?\]`)
)

// ParseEndpoints extracts the endpoint list from a composite locator.
// The returned set preserves the order of the list and contains at least one
// endpoint.
func ParseEndpoints(url string) (*endpoint.Set, error) {
	m := profilePattern.FindStringSubmatch(url)
	if m == nil {
		return nil, fmt.Errorf("invalid locator %q: expected <scheme>:ojp[host:port]_<downstream-locator>", url)
	}

	var endpoints []endpoint.Endpoint
	for _, entry := range strings.Split(m[1], ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ep, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints found in locator %q", url)
	}
	return endpoint.NewSet(endpoints)
}

func parseEntry(entry string) (endpoint.Endpoint, error) {
	host, portStr, ok := strings.Cut(entry, ":")
	if !ok || strings.Contains(portStr, ":") {
		return endpoint.Endpoint{}, fmt.Errorf("invalid endpoint %q: expected host:port", entry)
	}
	host = strings.TrimSpace(host)
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("invalid port in endpoint %q: %w", entry, err)
	}
	if port < 1 || port > 65535 {
		return endpoint.Endpoint{}, fmt.Errorf("port out of range in endpoint %q: %d", entry, port)
	}
	return endpoint.Endpoint{Host: host, Port: port}, nil
}

// ExtractDownstreamURL strips the proxy tag, the bracketed endpoint list,
// and the trailing separator once, recovering the locator the downstream
// database driver understands.
func ExtractDownstreamURL(url string) string {
	loc := proxyPattern.FindStringIndex(url)
	if loc == nil {
		return url
	}
	rest := url[loc[1]:]
	rest = strings.TrimPrefix(rest, "_")
	return url[:loc[0]] + rest
}

// ExtractPoolProfile returns the pool profile named after '>' inside the
// brackets, or DefaultPoolProfile when absent.
func ExtractPoolProfile(url string) string {
	m := profilePattern.FindStringSubmatch(url)
	if m == nil {
		return DefaultPoolProfile
	}
	if profile := strings.TrimSpace(m[2]); profile != "" {
		return profile
	}
	return DefaultPoolProfile
}

// FormatEndpoints renders endpoints back into the comma-separated locator
// form.
func FormatEndpoints(endpoints []endpoint.Endpoint) string {
	addrs := make([]string, len(endpoints))
	for i, ep := range endpoints {
		addrs[i] = ep.Addr()
	}
	return strings.Join(addrs, ",")
}

// familyPrefixes maps downstream locator prefixes to database families. The
// "jdbc:" scheme prefix is stripped before matching, so both
// "jdbc:postgresql://..." and "postgresql://..." resolve.
var familyPrefixes = []struct {
	prefix string
	family wire.DbName
}{
	{"h2:", wire.DbH2},
	{"postgresql:", wire.DbPostgres},
	{"mysql:", wire.DbMySQL},
	{"mariadb:", wire.DbMariaDB},
	{"oracle:", wire.DbOracle},
	{"sqlserver:", wire.DbSQLServer},
	{"jtds:", wire.DbSQLServer},
}

// DetectFamily resolves the database family from a downstream locator. Used
// as a fallback before the server has reported the authoritative family on a
// session.
func DetectFamily(downstreamURL string) wire.DbName {
	url := strings.TrimPrefix(downstreamURL, "jdbc:")
	for _, fp := range familyPrefixes {
		if strings.HasPrefix(url, fp.prefix) {
			return fp.family
		}
	}
	return wire.DbUnknown
}
