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

package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/go-dhcpd/internal/lease"
	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

type countingBackend struct {
	calls  int
	answer *lease.Answer
}

func (b *countingBackend) Discover(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	b.calls++
	return b.answer, nil
}
func (b *countingBackend) Request(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	b.calls++
	return b.answer, nil
}
func (b *countingBackend) Decline(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return nil, nil
}
func (b *countingBackend) Release(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return nil, nil
}

func testRequest(t *testing.T) *dhcpv4.Message {
	t.Helper()
	hw, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatal(err)
	}
	return dhcpv4.Discover(1, hw, nil)
}

func TestCacheHitAvoidsSecondBackendCall(t *testing.T) {
	inner := &countingBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5), Lease: time.Hour}, Source: "MEMORY"}}
	c := &Backend{Backend: inner}
	req := testRequest(t)

	if _, err := c.Discover(context.Background(), nil, req); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Discover(context.Background(), nil, req); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Fatalf("backend called %d times, want 1 (second lookup should hit cache)", inner.calls)
	}
}

func TestCacheIgnoresOwnSourceByDefault(t *testing.T) {
	inner := &countingBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5), Lease: time.Hour}, Source: "Cache"}}
	c := &Backend{Backend: inner}
	req := testRequest(t)

	c.Discover(context.Background(), nil, req)
	c.Discover(context.Background(), nil, req)
	if inner.calls != 2 {
		t.Fatalf("backend called %d times, want 2 (answers sourced from Cache must never be cached)", inner.calls)
	}
}

func TestCacheExpiresEntriesAfterTTL(t *testing.T) {
	inner := &countingBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5), Lease: time.Hour}, Source: "MEMORY"}}
	c := &Backend{Backend: inner, Expiration: time.Millisecond}
	req := testRequest(t)

	c.Discover(context.Background(), nil, req)
	time.Sleep(5 * time.Millisecond)
	c.Discover(context.Background(), nil, req)
	if inner.calls != 2 {
		t.Fatalf("backend called %d times, want 2 (expired entry should miss)", inner.calls)
	}
}

func TestCacheMaxSizeTriggersBulkClear(t *testing.T) {
	inner := &countingBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5), Lease: time.Hour}, Source: "MEMORY"}}
	c := &Backend{Backend: inner, MaxSize: 1}

	hw1, _ := net.ParseMAC("aa:bb:cc:dd:ee:01")
	hw2, _ := net.ParseMAC("aa:bb:cc:dd:ee:02")
	req1 := dhcpv4.Discover(1, hw1, nil)
	req2 := dhcpv4.Discover(2, hw2, nil)

	c.Discover(context.Background(), nil, req1)
	c.Discover(context.Background(), nil, req2) // should clear req1's entry before inserting req2's

	if _, ok := c.get(key(req1.ClientHwAddr, dhcpv4.MessageTypeDiscover)); ok {
		t.Fatal("expected req1's cache entry to be cleared when MaxSize was reached")
	}
}

func TestDeclineInvalidatesCacheEntry(t *testing.T) {
	inner := &countingBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5), Lease: time.Hour}, Source: "MEMORY"}}
	c := &Backend{Backend: inner}
	req := testRequest(t)

	c.Discover(context.Background(), nil, req)
	c.Decline(context.Background(), nil, req)
	if _, ok := c.get(key(req.ClientHwAddr, dhcpv4.MessageTypeDiscover)); ok {
		t.Fatal("Decline should invalidate the cache entry")
	}
}

func TestCacheSkipsZeroLeaseAnswers(t *testing.T) {
	inner := &countingBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5)}, Source: "MEMORY"}}
	c := &Backend{Backend: inner}
	req := testRequest(t)

	c.Discover(context.Background(), nil, req)
	c.Discover(context.Background(), nil, req)
	if inner.calls != 2 {
		t.Fatalf("backend called %d times, want 2 (zero-lease answers must not be cached)", inner.calls)
	}
}

func TestCacheSeparatesDiscoverAndRequest(t *testing.T) {
	inner := &countingBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5), Lease: time.Hour}, Source: "MEMORY"}}
	c := &Backend{Backend: inner}
	req := testRequest(t)

	c.Discover(context.Background(), nil, req)
	c.Request(context.Background(), nil, req)
	if inner.calls != 2 {
		t.Fatalf("backend called %d times, want 2 (Discover's cached answer must not satisfy Request)", inner.calls)
	}
}
