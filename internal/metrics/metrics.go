/*
Copyright 2025 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics defines this server's domain counters/gauges. The
// teacher (cmd/dranet/app.go) only ever serves the default prometheus
// registry via promhttp.Handler() and never defines a custom metric;
// this package is this repo's own addition, since a DHCP server has
// real things worth counting that a DRA network driver doesn't.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResponsesTotal counts replies sent, labeled by DHCP message type
	// ("Offer", "Ack", "Nak", ...).
	ResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dhcpd",
		Name:      "responses_total",
		Help:      "DHCP responses sent, by message type.",
	}, []string{"type"})

	// RequestErrorsTotal counts requests that ended in a DhcpError,
	// labeled by status code name.
	RequestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dhcpd",
		Name:      "request_errors_total",
		Help:      "Requests that resulted in a DHCP status-code error, by status.",
	}, []string{"status"})

	// LeasePoolSize is the number of active (non-expired) leases per
	// backend instance.
	LeasePoolSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dhcpd",
		Name:      "lease_pool_active_leases",
		Help:      "Active leases currently tracked by the memory backend.",
	}, []string{"network"})

	// LeasePoolReclaimed is the number of addresses sitting in the
	// reclaimed pool, ready for reuse.
	LeasePoolReclaimed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dhcpd",
		Name:      "lease_pool_reclaimed_addresses",
		Help:      "Addresses reclaimed and awaiting reuse.",
	}, []string{"network"})

	// CacheHits/CacheMisses track the assignment-cache overlay's hit rate.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dhcpd",
		Name:      "cache_hits_total",
		Help:      "Lease answers served from the cache overlay.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dhcpd",
		Name:      "cache_misses_total",
		Help:      "Lease answers that missed the cache overlay and were delegated.",
	})
)
