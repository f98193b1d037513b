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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the driver's Prometheus instrumentation. Attach one with
// WithMetrics and register it with your registry; the driver never
// registers collectors on its own.
type Metrics struct {
	// DispatchRetries counts dispatcher attempts beyond the first, by
	// operation.
	DispatchRetries *prometheus.CounterVec

	// EndpointFailovers counts calls moved off a failed endpoint, by
	// operation.
	EndpointFailovers *prometheus.CounterVec

	// LobBytesSent and LobBytesReceived count LOB payload bytes through the
	// streaming engine.
	LobBytesSent     prometheus.Counter
	LobBytesReceived prometheus.Counter
}

// NewMetrics returns an unregistered metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		DispatchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ojp",
			Subsystem: "driver",
			Name:      "dispatch_retries_total",
			Help:      "Dispatcher attempts beyond the first.",
		}, []string{"op"}),
		EndpointFailovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ojp",
			Subsystem: "driver",
			Name:      "endpoint_failovers_total",
			Help:      "Calls moved off a failed endpoint.",
		}, []string{"op"}),
		LobBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ojp",
			Subsystem: "driver",
			Name:      "lob_bytes_sent_total",
			Help:      "LOB payload bytes written to servers.",
		}),
		LobBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ojp",
			Subsystem: "driver",
			Name:      "lob_bytes_received_total",
			Help:      "LOB payload bytes read from servers.",
		}),
	}
}

// MustRegister registers every collector of the set with r.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(m.DispatchRetries, m.EndpointFailovers, m.LobBytesSent, m.LobBytesReceived)
}

func (c *Client) countRetry(op string) {
	if m := c.opts.metrics; m != nil {
		m.DispatchRetries.WithLabelValues(op).Inc()
	}
}

func (c *Client) countFailover(op string) {
	if m := c.opts.metrics; m != nil {
		m.EndpointFailovers.WithLabelValues(op).Inc()
	}
}

func (c *Client) countLobSent(n int) {
	if m := c.opts.metrics; m != nil {
		m.LobBytesSent.Add(float64(n))
	}
}

func (c *Client) countLobReceived(n int) {
	if m := c.opts.metrics; m != nil {
		m.LobBytesReceived.Add(float64(n))
	}
}
