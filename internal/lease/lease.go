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

// Package lease implements the DHCPv4 address-allocation backend: the
// static-reservation-then-dynamic-pool algorithm, and the Backend
// contract that the PXE and cache overlays wrap.
package lease

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/google/go-dhcpd/internal/metrics"
	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

// Assignment is the lease data a Backend hands back for a client: the
// address to offer, its netmask, and the supporting options the session
// turns into a reply message.
type Assignment struct {
	IP        net.IP
	Netmask   net.IP
	Gateway   net.IP
	DNS       []net.IP
	DNSSearch []string
	Lease     time.Duration
}

// PXEInfo is optional boot-service data a Backend (typically the PXE
// overlay) attaches to an Answer on top of, or instead of, an Assignment.
type PXEInfo struct {
	ServerIP   net.IP
	ServerName string
	BootFile   string
	PathPrefix string
	Primary    bool
}

// Answer is what a Backend call returns: lease data, optional PXE data,
// and the name of the backend that produced it (used by the cache
// overlay's Ignore set and surfaced in metrics/logs).
type Answer struct {
	Assign *Assignment
	PXE    *PXEInfo
	Source string
}

// Backend is the capability contract every lease source and overlay
// implements. A nil Answer with a nil error means "no opinion, fall
// through to a Nak" — distinct from a returned error, which is always
// wrapped in a *dhcpv4.Error and becomes a StatusCode response.
type Backend interface {
	Discover(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*Answer, error)
	Request(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*Answer, error)
	Decline(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*Answer, error)
	Release(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*Answer, error)
}

// Reservation is a static, per-hardware-address override. Any zero
// field falls back to the backend's configured default.
type Reservation struct {
	IP        net.IP
	Gateway   net.IP
	DNS       []net.IP
	DNSSearch []string
	Lease     time.Duration
}

type leaseRecord struct {
	assign  Assignment
	expires time.Time
}

// MemoryBackend is the in-process lease pool: static reservations plus a
// dynamically-allocated range, with reclaimed addresses reused before the
// pool iterator advances. Grounded on pydhcp's v4 server/backend/memory.py
// MemoryBackend/_next_ip/request_address.
type MemoryBackend struct {
	Network      *net.IPNet
	Gateway      net.IP
	DNS          []net.IP
	DNSSearch    []string
	DefaultLease time.Duration

	mu        sync.Mutex
	static    map[string]*Reservation
	records   map[string]*leaseRecord
	reclaimed []uint32 // sorted ascending
	nextHost  uint32   // cursor into the host range, exclusive of network/broadcast
}

const source = "MEMORY"

// NewMemoryBackend constructs a pool over network, handing out addresses
// starting just after the network address.
func NewMemoryBackend(network *net.IPNet, gateway net.IP, dns []net.IP, dnsSearch []string, defaultLease time.Duration) *MemoryBackend {
	return &MemoryBackend{
		Network:      network,
		Gateway:      gateway,
		DNS:          dns,
		DNSSearch:    dnsSearch,
		DefaultLease: defaultLease,
		static:       make(map[string]*Reservation),
		records:      make(map[string]*leaseRecord),
		nextHost:     ipToUint32(network.IP) + 1,
	}
}

// SetStatic registers a static reservation for mac, validated to lie
// within the backend's network.
func (b *MemoryBackend) SetStatic(mac net.HardwareAddr, r Reservation) error {
	if !b.Network.Contains(r.IP) {
		return fmt.Errorf("lease: static address %s is not in network %s", r.IP, b.Network)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rc := r
	b.static[mac.String()] = &rc
	return nil
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	return binary.BigEndian.Uint32(v4)
}

func uint32ToIP(v uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}

// reclaimAll moves every expired active record into the reclaimed pool,
// keeping it sorted so the smallest address is reused first.
func (b *MemoryBackend) reclaimAll(now time.Time) {
	var expiredMACs []string
	for mac, rec := range b.records {
		if !rec.expires.After(now) {
			expiredMACs = append(expiredMACs, mac)
		}
	}
	for _, mac := range expiredMACs {
		rec := b.records[mac]
		delete(b.records, mac)
		b.reclaimed = append(b.reclaimed, ipToUint32(rec.assign.IP))
	}
	if len(expiredMACs) > 0 {
		sort.Slice(b.reclaimed, func(i, j int) bool { return b.reclaimed[i] < b.reclaimed[j] })
	}
}

func (b *MemoryBackend) reclaimOne(mac string) {
	rec, ok := b.records[mac]
	if !ok {
		return
	}
	delete(b.records, mac)
	b.reclaimed = append(b.reclaimed, ipToUint32(rec.assign.IP))
	sort.Slice(b.reclaimed, func(i, j int) bool { return b.reclaimed[i] < b.reclaimed[j] })
}

// reservedAddresses returns the set of addresses _next_ip must never
// hand out from the dynamic range: the gateway, the DNS servers, and
// every statically-reserved address.
func (b *MemoryBackend) reservedAddresses() map[uint32]struct{} {
	reserved := make(map[uint32]struct{})
	if b.Gateway != nil {
		reserved[ipToUint32(b.Gateway)] = struct{}{}
	}
	for _, ip := range b.DNS {
		reserved[ipToUint32(ip)] = struct{}{}
	}
	for _, r := range b.static {
		reserved[ipToUint32(r.IP)] = struct{}{}
	}
	return reserved
}

// nextIP implements the allocation order from memory.py's _next_ip:
// renew an unexpired lease in place; else honor a requested address if
// it's in the reclaimed pool; else pop the smallest reclaimed address;
// else advance the host iterator, skipping reserved addresses.
func (b *MemoryBackend) nextIP(mac string, requested net.IP, now time.Time) (net.IP, bool) {
	if rec, ok := b.records[mac]; ok && rec.expires.After(now) {
		return rec.assign.IP, true
	}
	if requested != nil && b.Network.Contains(requested) {
		want := ipToUint32(requested)
		for i, v := range b.reclaimed {
			if v == want {
				b.reclaimed = append(b.reclaimed[:i], b.reclaimed[i+1:]...)
				return requested, true
			}
		}
	}
	if len(b.reclaimed) > 0 {
		v := b.reclaimed[0]
		b.reclaimed = b.reclaimed[1:]
		return uint32ToIP(v), true
	}
	reserved := b.reservedAddresses()
	broadcast := ipToUint32(b.Network.IP) | ^ipToUint32(net.IP(b.Network.Mask))
	for v := b.nextHost; v < broadcast; v++ {
		b.nextHost = v + 1
		if _, skip := reserved[v]; skip {
			continue
		}
		return uint32ToIP(v), true
	}
	return nil, false
}

// RequestAddress runs the full allocation algorithm under the pool's
// lock: reclaim expired leases, honor a static reservation if one
// exists, otherwise allocate dynamically and record the new lease
// expiry (renewal wins over fresh allocation). Static reservations are
// not recorded, so they are never reclaimed into the dynamic pool.
func (b *MemoryBackend) RequestAddress(mac net.HardwareAddr, requested net.IP) (*Assignment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	key := mac.String()
	b.reclaimAll(now)

	var assign Assignment
	if r, ok := b.static[key]; ok {
		assign = Assignment{
			IP:        r.IP,
			Netmask:   net.IP(b.Network.Mask),
			Gateway:   firstNonNilIP(r.Gateway, b.Gateway),
			DNS:       firstNonEmptyIPs(r.DNS, b.DNS),
			DNSSearch: firstNonEmptyStrings(r.DNSSearch, b.DNSSearch),
			Lease:     firstNonZeroDuration(r.Lease, b.DefaultLease),
		}
	} else {
		ip, ok := b.nextIP(key, requested, now)
		if !ok {
			return nil, dhcpv4.ErrNoAddrsAvailable("lease pool exhausted for network %s", b.Network)
		}
		assign = Assignment{
			IP:        ip,
			Netmask:   net.IP(b.Network.Mask),
			Gateway:   b.Gateway,
			DNS:       b.DNS,
			DNSSearch: b.DNSSearch,
			Lease:     b.DefaultLease,
		}
		b.records[key] = &leaseRecord{assign: assign, expires: now.Add(assign.Lease)}
	}

	b.updateMetrics()
	klog.V(4).Infof("lease: assigned %s to %s (lease %s)", assign.IP, key, assign.Lease)
	return &assign, nil
}

// updateMetrics publishes the pool gauges; callers hold the mutex.
func (b *MemoryBackend) updateMetrics() {
	network := b.Network.String()
	metrics.LeasePoolSize.WithLabelValues(network).Set(float64(len(b.records)))
	metrics.LeasePoolReclaimed.WithLabelValues(network).Set(float64(len(b.reclaimed)))
}

// ReleaseAddress reclaims mac's active lease immediately, returning its
// address to the reclaimed pool (where the smallest address is reused
// first).
func (b *MemoryBackend) ReleaseAddress(mac net.HardwareAddr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := mac.String()
	b.reclaimOne(key)
	b.reclaimAll(time.Now())
	b.updateMetrics()
}

func firstNonNilIP(a, b net.IP) net.IP {
	if a != nil {
		return a
	}
	return b
}

func firstNonEmptyIPs(a, b []net.IP) []net.IP {
	if len(a) > 0 {
		return a
	}
	return b
}

func firstNonEmptyStrings(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

func firstNonZeroDuration(a, b time.Duration) time.Duration {
	if a != 0 {
		return a
	}
	return b
}

func (b *MemoryBackend) Discover(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*Answer, error) {
	assign, err := b.RequestAddress(req.ClientHwAddr, req.RequestedAddress())
	if err != nil {
		return nil, err
	}
	return &Answer{Assign: assign, Source: source}, nil
}

func (b *MemoryBackend) Request(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*Answer, error) {
	assign, err := b.RequestAddress(req.ClientHwAddr, req.RequestedAddress())
	if err != nil {
		return nil, err
	}
	return &Answer{Assign: assign, Source: source}, nil
}

func (b *MemoryBackend) Decline(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*Answer, error) {
	b.ReleaseAddress(req.ClientHwAddr)
	return nil, nil
}

func (b *MemoryBackend) Release(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*Answer, error) {
	b.ReleaseAddress(req.ClientHwAddr)
	return nil, nil
}
