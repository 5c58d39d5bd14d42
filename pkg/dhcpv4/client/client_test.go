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

package client

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

func ackMessage(t *testing.T, strip ...dhcpv4.OptionCode) *dhcpv4.Message {
	t.Helper()
	hw, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	req := dhcpv4.Request(0x3d1e, hw, net.ParseIP("192.168.0.10").To4())
	ack := req.Reply(
		dhcpv4.NewDHCPMessageType(dhcpv4.MessageTypeAck),
		dhcpv4.NewSubnetMask(net.ParseIP("255.255.255.0").To4()),
		dhcpv4.NewRouter(net.ParseIP("192.168.0.1").To4()),
		dhcpv4.NewDomainNameServer(net.ParseIP("1.1.1.1").To4()),
		dhcpv4.NewDNSDomainSearchList("corp.example.com"),
		dhcpv4.NewIPAddressLeaseTime(time.Hour),
	)
	ack.YourAddr = net.ParseIP("192.168.0.10").To4()
	for _, code := range strip {
		ack.Options.Remove(code)
	}
	return ack
}

func TestAssignmentFromAck(t *testing.T) {
	assign, err := assignmentFromAck(ackMessage(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "192.168.0.10"; assign.IP.String() != want {
		t.Errorf("ip = %s, want %s", assign.IP, want)
	}
	if want := "255.255.255.0"; assign.Netmask.String() != want {
		t.Errorf("netmask = %s, want %s", assign.Netmask, want)
	}
	if len(assign.Routers) != 1 || assign.Routers[0].String() != "192.168.0.1" {
		t.Errorf("routers = %v, want [192.168.0.1]", assign.Routers)
	}
	if assign.Lease != time.Hour {
		t.Errorf("lease = %s, want 1h", assign.Lease)
	}
	if len(assign.DNS) != 1 || assign.DNS[0].String() != "1.1.1.1" {
		t.Errorf("dns = %v, want [1.1.1.1]", assign.DNS)
	}
	if len(assign.DNSSearch) != 1 || assign.DNSSearch[0] != "corp.example.com" {
		t.Errorf("dns search = %v, want [corp.example.com]", assign.DNSSearch)
	}
}

func TestAssignmentFromAckMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		strip   dhcpv4.OptionCode
		wantErr string
	}{
		{"no subnet mask", dhcpv4.OptionSubnetMask, "subnet mask"},
		{"no router", dhcpv4.OptionRouter, "router"},
		{"no lease time", dhcpv4.OptionIPAddressLeaseTime, "lease time"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := assignmentFromAck(ackMessage(t, tc.strip))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestAssignmentFromAckOptionalFieldsAbsent(t *testing.T) {
	assign, err := assignmentFromAck(ackMessage(t, dhcpv4.OptionDomainNameServer, dhcpv4.OptionDNSDomainSearchList))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assign.DNS) != 0 || len(assign.DNSSearch) != 0 {
		t.Errorf("expected empty optional fields, got dns=%v search=%v", assign.DNS, assign.DNSSearch)
	}
}

func TestAssignmentFromAckZeroAddress(t *testing.T) {
	ack := ackMessage(t)
	ack.YourAddr = net.IPv4zero.To4()
	if _, err := assignmentFromAck(ack); err == nil {
		t.Fatal("expected an error for a zero yiaddr")
	}
}
