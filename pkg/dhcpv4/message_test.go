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

package dhcpv4

import (
	"net"
	"testing"
	"time"
)

func testHwAddr(t *testing.T) net.HardwareAddr {
	t.Helper()
	hw, err := net.ParseMAC("00:11:22:33:44:55")
	if err != nil {
		t.Fatal(err)
	}
	return hw
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	chaddr := testHwAddr(t)
	msg := Discover(0x12345678, chaddr, nil)

	raw, err := msg.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) < minPacketSize {
		t.Fatalf("encoded length = %d, want >= %d", len(raw), minPacketSize)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Xid != msg.Xid {
		t.Fatalf("Xid = %#x, want %#x", decoded.Xid, msg.Xid)
	}
	if decoded.ClientHwAddr.String() != chaddr.String() {
		t.Fatalf("ClientHwAddr = %v, want %v", decoded.ClientHwAddr, chaddr)
	}
	mt, ok := decoded.MessageType()
	if !ok || mt != MessageTypeDiscover {
		t.Fatalf("MessageType = %v, %v, want Discover", mt, ok)
	}
}

func TestEncodePadsToMinimumSizeOnTheRight(t *testing.T) {
	chaddr := testHwAddr(t)
	msg := Discover(1, chaddr, nil)
	raw, err := msg.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != minPacketSize {
		t.Fatalf("len = %d, want exactly %d for a small Discover", len(raw), minPacketSize)
	}
	// The End marker (and any padding after it) must be trailing, not
	// leading: the fixed header must start at offset 0 unperturbed.
	if raw[0] != byte(OpBootRequest) {
		t.Fatalf("raw[0] = %#x, want OpBootRequest; padding must be appended on the right, not the left", raw[0])
	}
	// Find the End option and confirm everything after it is zero.
	endIdx := -1
	for i, b := range raw[headerSize+4:] {
		if b == byte(OptionEnd) {
			endIdx = headerSize + 4 + i
			break
		}
	}
	if endIdx == -1 {
		t.Fatal("no End option found in encoded packet")
	}
	for i := endIdx + 1; i < len(raw); i++ {
		if raw[i] != 0 {
			t.Fatalf("byte %d after End marker is non-zero padding on the right as expected, but got non-zero at unexpected position", i)
		}
	}
}

func TestDiscoverRequestAckFlow(t *testing.T) {
	chaddr := testHwAddr(t)
	xid := uint32(42)

	discover := Discover(xid, chaddr, nil)
	if mt, _ := discover.MessageType(); mt != MessageTypeDiscover {
		t.Fatalf("Discover MessageType = %v", mt)
	}

	offer := discover.Reply(
		NewDHCPMessageType(MessageTypeOffer),
		NewServerIdentifier(net.IPv4(10, 0, 0, 1)),
		NewSubnetMask(net.IPv4(255, 255, 255, 0)),
		NewIPAddressLeaseTime(time.Hour),
	)
	offer.YourAddr = net.IPv4(10, 0, 0, 50)

	raw, err := offer.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decodedOffer, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if mt, _ := decodedOffer.MessageType(); mt != MessageTypeOffer {
		t.Fatalf("decoded offer MessageType = %v, want Offer", mt)
	}
	if !decodedOffer.YourAddr.Equal(net.IPv4(10, 0, 0, 50)) {
		t.Fatalf("YourAddr = %v", decodedOffer.YourAddr)
	}

	request := Request(xid, chaddr, decodedOffer.YourAddr)
	if req := request.RequestedAddress(); !req.Equal(net.IPv4(10, 0, 0, 50)) {
		t.Fatalf("RequestedAddress = %v", req)
	}

	ack := request.Reply(
		NewDHCPMessageType(MessageTypeAck),
		NewServerIdentifier(net.IPv4(10, 0, 0, 1)),
	)
	ack.YourAddr = decodedOffer.YourAddr
	rawAck, err := ack.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decodedAck, err := Decode(rawAck)
	if err != nil {
		t.Fatal(err)
	}
	if mt, _ := decodedAck.MessageType(); mt != MessageTypeAck {
		t.Fatalf("decoded ack MessageType = %v, want Ack", mt)
	}
	if !decodedAck.ServerIdentifier().Equal(net.IPv4(10, 0, 0, 1)) {
		t.Fatalf("ServerIdentifier = %v", decodedAck.ServerIdentifier())
	}
}

func TestDecodeRejectsBadMagicCookie(t *testing.T) {
	chaddr := testHwAddr(t)
	msg := Discover(1, chaddr, nil)
	raw, err := msg.Encode()
	if err != nil {
		t.Fatal(err)
	}
	raw[headerSize] = 0x00 // corrupt the magic cookie
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected error decoding a packet with a bad magic cookie")
	}
}

func TestDecodeRejectsShortDatagram(t *testing.T) {
	if _, err := Decode(make([]byte, 10)); err == nil {
		t.Fatal("expected error decoding a too-short datagram")
	}
}

func TestRequestCarriesRequestedIPAddress(t *testing.T) {
	chaddr := testHwAddr(t)
	ip := net.IPv4(192, 168, 0, 5)
	req := Request(99, chaddr, ip)
	if got := req.RequestedAddress(); !got.Equal(ip) {
		t.Fatalf("RequestedAddress = %v, want %v", got, ip)
	}
	if mt, _ := req.MessageType(); mt != MessageTypeRequest {
		t.Fatalf("MessageType = %v, want Request", mt)
	}
}
