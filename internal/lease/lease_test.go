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

package lease

import (
	"net"
	"testing"
	"time"

	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	hw, err := net.ParseMAC(s)
	if err != nil {
		t.Fatal(err)
	}
	return hw
}

func newTestPool(t *testing.T) *MemoryBackend {
	t.Helper()
	_, network, err := net.ParseCIDR("192.168.1.0/29")
	if err != nil {
		t.Fatal(err)
	}
	return NewMemoryBackend(network, net.IPv4(192, 168, 1, 1), []net.IP{net.IPv4(8, 8, 8, 8)}, nil, time.Hour)
}

func TestRequestAddressAllocatesSequentially(t *testing.T) {
	pool := newTestPool(t)
	mac1 := mustMAC(t, "00:11:22:33:44:01")
	mac2 := mustMAC(t, "00:11:22:33:44:02")

	a1, err := pool.RequestAddress(mac1, nil)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := pool.RequestAddress(mac2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a1.IP.Equal(a2.IP) {
		t.Fatalf("two clients got the same address: %v", a1.IP)
	}
	if a1.IP.Equal(net.IPv4(192, 168, 1, 1)) || a1.IP.Equal(net.IPv4(8, 8, 8, 8)) {
		t.Fatalf("allocated a reserved address: %v", a1.IP)
	}
}

func TestRequestAddressRenewalWinsOverReallocation(t *testing.T) {
	pool := newTestPool(t)
	mac := mustMAC(t, "00:11:22:33:44:01")

	first, err := pool.RequestAddress(mac, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := pool.RequestAddress(mac, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !first.IP.Equal(second.IP) {
		t.Fatalf("renewal changed address: %v -> %v", first.IP, second.IP)
	}
}

func TestReleaseThenReallocateReusesAddress(t *testing.T) {
	pool := newTestPool(t)
	mac1 := mustMAC(t, "00:11:22:33:44:01")
	mac2 := mustMAC(t, "00:11:22:33:44:02")

	a1, err := pool.RequestAddress(mac1, nil)
	if err != nil {
		t.Fatal(err)
	}
	pool.ReleaseAddress(mac1)

	a2, err := pool.RequestAddress(mac2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !a1.IP.Equal(a2.IP) {
		t.Fatalf("released address was not reused first: %v vs %v", a1.IP, a2.IP)
	}
}

func TestStaticReservationOverridesPool(t *testing.T) {
	pool := newTestPool(t)
	mac := mustMAC(t, "00:11:22:33:44:09")
	reserved := net.IPv4(192, 168, 1, 6)
	if err := pool.SetStatic(mac, Reservation{IP: reserved, Lease: 30 * time.Minute}); err != nil {
		t.Fatal(err)
	}
	assign, err := pool.RequestAddress(mac, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !assign.IP.Equal(reserved) {
		t.Fatalf("IP = %v, want static %v", assign.IP, reserved)
	}
	if assign.Lease != 30*time.Minute {
		t.Fatalf("Lease = %v, want the reservation's override", assign.Lease)
	}
}

func TestPoolExhaustionReturnsNoAddrsAvailable(t *testing.T) {
	_, network, err := net.ParseCIDR("192.168.2.0/30") // 2 usable hosts
	if err != nil {
		t.Fatal(err)
	}
	pool := NewMemoryBackend(network, nil, nil, nil, time.Hour)

	for i := 0; i < 2; i++ {
		mac := mustMAC(t, net.HardwareAddr{0, 0, 0, 0, 0, byte(i)}.String())
		if _, err := pool.RequestAddress(mac, nil); err != nil {
			t.Fatalf("unexpected error on allocation %d: %v", i, err)
		}
	}
	mac := mustMAC(t, "00:00:00:00:00:09")
	_, err = pool.RequestAddress(mac, nil)
	if err == nil {
		t.Fatal("expected pool exhaustion error")
	}
	derr, ok := err.(*dhcpv4.Error)
	if !ok || derr.Code != dhcpv4.StatusNoAddrsAvail {
		t.Fatalf("error = %v, want a NoAddrsAvail *dhcpv4.Error", err)
	}
}

func TestRequestedAddressHonoredWhenReclaimed(t *testing.T) {
	pool := newTestPool(t)
	mac1 := mustMAC(t, "00:11:22:33:44:01")
	mac2 := mustMAC(t, "00:11:22:33:44:02")
	mac3 := mustMAC(t, "00:11:22:33:44:03")

	a1, err := pool.RequestAddress(mac1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pool.RequestAddress(mac2, nil); err != nil {
		t.Fatal(err)
	}
	pool.ReleaseAddress(mac1)

	a3, err := pool.RequestAddress(mac3, a1.IP)
	if err != nil {
		t.Fatal(err)
	}
	if !a3.IP.Equal(a1.IP) {
		t.Fatalf("explicitly requested reclaimed address was not honored: got %v, want %v", a3.IP, a1.IP)
	}
}
