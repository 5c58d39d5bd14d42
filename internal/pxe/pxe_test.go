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

package pxe

import (
	"context"
	"net"
	"testing"

	"github.com/google/go-dhcpd/internal/lease"
	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

type stubBackend struct {
	answer *lease.Answer
	err    error
}

func (s *stubBackend) Discover(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return s.answer, s.err
}
func (s *stubBackend) Request(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return s.answer, s.err
}
func (s *stubBackend) Decline(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return s.answer, s.err
}
func (s *stubBackend) Release(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return s.answer, s.err
}

func pxeDiscoverRequest(t *testing.T) *dhcpv4.Message {
	t.Helper()
	hw, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatal(err)
	}
	msg := dhcpv4.Discover(1, hw, nil)
	msg.Options.Append(dhcpv4.NewParameterRequestList(dhcpv4.OptionBootfileName))
	return msg
}

func TestPXENotActivatedWithoutPXEOptions(t *testing.T) {
	hw, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	msg := dhcpv4.Discover(1, hw, nil)
	inner := &stubBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5)}, Source: "MEMORY"}}
	b := &Backend{Backend: inner, Config: Config{IP: net.IPv4(10, 0, 0, 1), Primary: true, Filename: "pxelinux.0"}}

	answer, err := b.Discover(context.Background(), nil, msg)
	if err != nil {
		t.Fatal(err)
	}
	if answer.PXE != nil {
		t.Fatalf("PXE info set for a non-PXE request: %+v", answer.PXE)
	}
}

func TestPXEActivatesAndAugmentsAnswer(t *testing.T) {
	msg := pxeDiscoverRequest(t)
	inner := &stubBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5)}, Source: "MEMORY"}}
	b := &Backend{Backend: inner, Config: Config{IP: net.IPv4(10, 0, 0, 1), Primary: true, Filename: "pxelinux.0"}}

	answer, err := b.Discover(context.Background(), nil, msg)
	if err != nil {
		t.Fatal(err)
	}
	if answer.PXE == nil || !answer.PXE.ServerIP.Equal(net.IPv4(10, 0, 0, 1)) {
		t.Fatalf("PXE info = %+v", answer.PXE)
	}
	if answer.Assign == nil || !answer.Assign.IP.Equal(net.IPv4(10, 0, 0, 5)) {
		t.Fatalf("underlying assignment lost: %+v", answer.Assign)
	}
}

func TestPXESynthesizesAnswerWhenBackendHasNone(t *testing.T) {
	msg := pxeDiscoverRequest(t)
	inner := &stubBackend{answer: nil}
	b := &Backend{Backend: inner, Config: Config{IP: net.IPv4(10, 0, 0, 1), Primary: true, Filename: "pxelinux.0"}}

	answer, err := b.Discover(context.Background(), nil, msg)
	if err != nil {
		t.Fatal(err)
	}
	if answer == nil || answer.PXE == nil {
		t.Fatal("expected a synthesized PXE-only answer")
	}
	if answer.Assign != nil {
		t.Fatalf("expected no assignment, got %+v", answer.Assign)
	}
}

func TestPXEArchitectureOverrideWinsOverVendor(t *testing.T) {
	msg := pxeDiscoverRequest(t)
	msg.Options.Append(dhcpv4.NewClientSystemArchitectureType(dhcpv4.ArchEFIx86_64))
	msg.Options.Append(dhcpv4.NewVendorClassIdentifier("PXEClient:Arch:00000"))

	inner := &stubBackend{answer: &lease.Answer{Assign: &lease.Assignment{IP: net.IPv4(10, 0, 0, 5)}}}
	b := &Backend{
		Backend: inner,
		Config: Config{
			IP:       net.IPv4(10, 0, 0, 1),
			Filename: "default.efi",
			Dynamic: DynamicConfig{
				Arches: map[dhcpv4.Arch]*Config{
					dhcpv4.ArchEFIx86_64: {IP: net.IPv4(10, 0, 0, 9), Filename: "efi64.efi"},
				},
				Vendors: map[string]string{"legacy": "PXEClient"},
				Configs: map[string]*Config{"legacy": {Filename: "should-not-win.efi"}},
			},
		},
	}

	answer, err := b.Discover(context.Background(), nil, msg)
	if err != nil {
		t.Fatal(err)
	}
	if answer.PXE.BootFile != "efi64.efi" {
		t.Fatalf("BootFile = %q, want the arch override to win over the vendor match", answer.PXE.BootFile)
	}
}

func TestApplyWritesNulTerminatedBootfile(t *testing.T) {
	hw, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	resp := dhcpv4.Discover(1, hw, nil).Reply()
	Apply(resp, &lease.PXEInfo{ServerIP: net.IPv4(10, 0, 0, 1), BootFile: "pxelinux.0", Primary: true})

	bf, ok := dhcpv4.GetAs[*dhcpv4.BootfileName](resp.Options, dhcpv4.OptionBootfileName)
	if !ok {
		t.Fatal("BootfileName option not set")
	}
	if bf.Value != "pxelinux.0\x00" {
		t.Fatalf("BootfileName = %q, want NUL-terminated", bf.Value)
	}
	if resp.BootFile != "pxelinux.0" {
		t.Fatalf("resp.BootFile = %q", resp.BootFile)
	}
}
