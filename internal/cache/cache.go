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

// Package cache overlays a per-hardware-address TTL cache onto a
// wrapped lease.Backend. Grounded on
// _examples/original_source/pydhcp/v4/server/backend/cache.py.
package cache

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/go-dhcpd/internal/lease"
	"github.com/google/go-dhcpd/internal/metrics"
	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

type entry struct {
	answer  lease.Answer
	expires time.Time // zero means no expiration
}

// Backend wraps a lease.Backend with a TTL/maxsize-bounded cache, keyed
// by (hardware address, message type). Answers whose Source is in Ignore are never
// cached — by default that's the cache's own source, which every answer
// served from the cache carries, so a served answer is never stored again.
type Backend struct {
	Backend    lease.Backend
	Expiration time.Duration // 0 means cached entries never expire on their own
	MaxSize    int           // 0 means unbounded
	Ignore     map[string]struct{}

	mu    sync.Mutex
	cache map[string]entry
}

const source = "Cache"

// key combines the client hardware address and the message type being
// answered: a cached Discover answer never satisfies a Request probe.
func key(hw net.HardwareAddr, mtype dhcpv4.MessageType) string {
	return hw.String() + "/" + mtype.String()
}

func (c *Backend) ignores(s string) bool {
	if c.Ignore == nil {
		return s == source
	}
	_, ok := c.Ignore[s]
	return ok
}

func (c *Backend) get(key string) (*lease.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !e.expires.After(time.Now()) {
		delete(c.cache, key)
		return nil, false
	}
	a := e.answer
	a.Source = source
	return &a, true
}

// set stores answer under key. On reaching MaxSize the whole cache is
// cleared before inserting — a bulk clear rather than pydhcp's
// incremental popitem() eviction, per spec.md §4.6's explicit
// bulk-clear description (entries are short-lived, so this is cheap).
func (c *Backend) set(key string, answer lease.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string]entry)
	}
	if c.MaxSize > 0 && len(c.cache) >= c.MaxSize {
		c.cache = make(map[string]entry)
	}
	var expires time.Time
	if c.Expiration > 0 {
		expires = time.Now().Add(c.Expiration)
	}
	c.cache[key] = entry{answer: answer, expires: expires}
}

func (c *Backend) del(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, key)
}

func (c *Backend) lookup(ctx context.Context, peer net.Addr, req *dhcpv4.Message, mtype dhcpv4.MessageType, next func(context.Context, net.Addr, *dhcpv4.Message) (*lease.Answer, error)) (*lease.Answer, error) {
	k := key(req.ClientHwAddr, mtype)
	if cached, ok := c.get(k); ok {
		metrics.CacheHits.Inc()
		return cached, nil
	}
	metrics.CacheMisses.Inc()
	answer, err := next(ctx, peer, req)
	if err != nil {
		return nil, err
	}
	// Only answers that carry a positive lease are worth memoizing;
	// PXE-only answers have nothing to expire against.
	if answer != nil && !c.ignores(answer.Source) && answer.Assign != nil && answer.Assign.Lease > 0 {
		c.set(k, *answer)
	}
	return answer, nil
}

func (c *Backend) Discover(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return c.lookup(ctx, peer, req, dhcpv4.MessageTypeDiscover, c.Backend.Discover)
}

func (c *Backend) Request(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return c.lookup(ctx, peer, req, dhcpv4.MessageTypeRequest, c.Backend.Request)
}

// Decline and Release always invalidate the client's cache entries
// before delegating, matching cache.py's del_assignment.
func (c *Backend) Decline(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	c.del(key(req.ClientHwAddr, dhcpv4.MessageTypeDiscover))
	c.del(key(req.ClientHwAddr, dhcpv4.MessageTypeRequest))
	return c.Backend.Decline(ctx, peer, req)
}

func (c *Backend) Release(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	c.del(key(req.ClientHwAddr, dhcpv4.MessageTypeDiscover))
	c.del(key(req.ClientHwAddr, dhcpv4.MessageTypeRequest))
	return c.Backend.Release(ctx, peer, req)
}
