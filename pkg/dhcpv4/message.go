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
	"fmt"
	"math/rand"
	"net"
)

// magicCookie is the 4-byte constant that opens the options area,
// immediately after the fixed 236-byte header.
const magicCookie uint32 = 0x63825363

// minPacketSize is the minimum size a DHCPv4 datagram is padded to on
// the wire (RFC 951 BOOTP compatibility); spec.md §3/§4.3/§8 describe
// this as right-padding with 0x00.
const minPacketSize = 300

const headerSize = 236

// Message is a decoded DHCPv4 packet: fixed header fields plus an
// ordered option list.
type Message struct {
	Op     OpCode
	HwType HwType
	Hops   uint8
	Xid    uint32
	Secs   uint16
	Flags  uint16

	ClientAddr   net.IP // ciaddr
	YourAddr     net.IP // yiaddr
	ServerAddr   net.IP // siaddr
	GatewayAddr  net.IP // giaddr
	ClientHwAddr net.HardwareAddr

	ServerName string
	BootFile   string

	Options *OptionList
}

// NewXid returns a random transaction id suitable for a new client
// transaction.
func NewXid() uint32 {
	return rand.Uint32()
}

func zeroIP() net.IP { return net.IPv4(0, 0, 0, 0) }

// Decode parses a raw DHCPv4 datagram. The magic cookie is verified;
// options are decoded until the End option or the buffer is exhausted.
func Decode(data []byte) (*Message, error) {
	if len(data) < headerSize+4 {
		return nil, fmt.Errorf("dhcpv4: datagram too short: %d bytes", len(data))
	}
	d := newDecoder(data)

	op, _ := d.uint8()
	htype, _ := d.uint8()
	hlen, err := d.uint8()
	if err != nil {
		return nil, err
	}
	hops, _ := d.uint8()
	xid, err := d.uint32()
	if err != nil {
		return nil, err
	}
	secs, _ := d.uint16()
	flags, _ := d.uint16()
	ciaddr, _ := d.ipv4()
	yiaddr, _ := d.ipv4()
	siaddr, _ := d.ipv4()
	giaddr, _ := d.ipv4()
	chaddrRaw, err := d.bytes(16)
	if err != nil {
		return nil, err
	}
	if int(hlen) > 16 {
		hlen = 16
	}
	chaddr := net.HardwareAddr(append([]byte(nil), chaddrRaw[:hlen]...))
	sname, err := d.static(64)
	if err != nil {
		return nil, err
	}
	file, err := d.static(128)
	if err != nil {
		return nil, err
	}
	cookie, err := d.uint32()
	if err != nil {
		return nil, err
	}
	if cookie != magicCookie {
		return nil, fmt.Errorf("dhcpv4: bad magic cookie: %#x", cookie)
	}

	msg := &Message{
		Op:           OpCode(op),
		HwType:       HwType(htype),
		Hops:         hops,
		Xid:          xid,
		Secs:         secs,
		Flags:        flags,
		ClientAddr:   ciaddr,
		YourAddr:     yiaddr,
		ServerAddr:   siaddr,
		GatewayAddr:  giaddr,
		ClientHwAddr: chaddr,
		ServerName:   trimNulString(sname),
		BootFile:     trimNulString(file),
		Options:      NewOptionList(),
	}

	for d.remaining() > 0 {
		if data[d.pos] == byte(OptionEnd) {
			break
		}
		opt, err := decodeOption(d)
		if err != nil {
			return nil, err
		}
		if opt == nil { // Pad
			continue
		}
		msg.Options.Append(opt)
	}
	return msg, nil
}

func trimNulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Encode serializes m: fixed header, magic cookie, options sorted by
// code, a trailing End marker, then zero-pads on the right to at least
// 300 bytes.
func (m *Message) Encode() ([]byte, error) {
	e := &encoder{}
	e.uint8(uint8(m.Op))
	e.uint8(uint8(m.HwType))
	hlen := len(m.ClientHwAddr)
	if hlen > 16 {
		hlen = 16
	}
	e.uint8(uint8(hlen))
	e.uint8(m.Hops)
	e.uint32(m.Xid)
	e.uint16(m.Secs)
	e.uint16(m.Flags)
	e.ipv4(nonNilIP(m.ClientAddr))
	e.ipv4(nonNilIP(m.YourAddr))
	e.ipv4(nonNilIP(m.ServerAddr))
	e.ipv4(nonNilIP(m.GatewayAddr))
	e.static(m.ClientHwAddr, 16)
	e.static([]byte(m.ServerName), 64)
	e.static([]byte(m.BootFile), 128)
	e.uint32(magicCookie)

	if m.Options != nil {
		m.Options.Sort()
		for _, opt := range m.Options.All() {
			if opt.Code() == OptionEnd {
				continue
			}
			if err := encodeOption(e, opt); err != nil {
				return nil, err
			}
		}
	}
	e.uint8(uint8(OptionEnd))

	out := e.buf
	if len(out) < minPacketSize {
		padded := make([]byte, minPacketSize)
		copy(padded, out)
		out = padded
	}
	return out, nil
}

func nonNilIP(ip net.IP) net.IP {
	if ip == nil {
		return zeroIP()
	}
	return ip
}

// ===== Accessors mirroring the original's Message field-lookups =====

func (m *Message) MessageType() (MessageType, bool) {
	o, ok := GetAs[*DHCPMessageType](m.Options, OptionDHCPMessageType)
	if !ok {
		return 0, false
	}
	return o.Type, true
}

func (m *Message) RequestedOptions() []OptionCode {
	o, ok := GetAs[*ParameterRequestList](m.Options, OptionParameterRequestList)
	if !ok {
		return nil
	}
	return o.Codes
}

func (m *Message) RequestedAddress() net.IP {
	o, ok := GetAs[*RequestedIPAddress](m.Options, OptionRequestedIPAddress)
	if !ok {
		return nil
	}
	return o.IP
}

func (m *Message) SubnetMask() net.IP {
	o, ok := GetAs[*SubnetMask](m.Options, OptionSubnetMask)
	if !ok {
		return nil
	}
	return o.IP
}

func (m *Message) BroadcastAddress() net.IP {
	o, ok := GetAs[*BroadcastAddress](m.Options, OptionBroadcastAddress)
	if !ok {
		return nil
	}
	return o.IP
}

func (m *Message) ServerIdentifier() net.IP {
	o, ok := GetAs[*ServerIdentifier](m.Options, OptionServerIdentifier)
	if !ok {
		return nil
	}
	return o.IP
}

func (m *Message) ClassIdentifier() (string, bool) {
	o, ok := GetAs[*ClassIdentifier](m.Options, OptionClassIdentifier)
	if !ok {
		return "", false
	}
	return o.Value, true
}

// ===== Constructors =====

// defaultParamRequestList mirrors the option set pydhcp's Message.discover
// and Message.request both request by default.
func defaultParamRequestList() *ParameterRequestList {
	return NewParameterRequestList(
		OptionSubnetMask,
		OptionBroadcastAddress,
		OptionTimeOffset,
		OptionRouter,
		OptionDomainName,
		OptionDomainNameServer,
		OptionHostname,
	)
}

// Discover builds a DHCPDISCOVER message. If ipaddr is non-nil it is
// carried as a RequestedIPAddress hint, inserted right after the
// message-type option.
func Discover(xid uint32, chaddr net.HardwareAddr, ipaddr net.IP, extra ...Option) *Message {
	opts := NewOptionList(NewDHCPMessageType(MessageTypeDiscover), defaultParamRequestList())
	for _, o := range extra {
		opts.Append(o)
	}
	if ipaddr != nil {
		opts.Insert(1, NewRequestedIPAddress(ipaddr))
	}
	return &Message{
		Op:           OpBootRequest,
		HwType:       HwTypeEthernet,
		Xid:          xid,
		ClientHwAddr: chaddr,
		ClientAddr:   zeroIP(),
		YourAddr:     zeroIP(),
		ServerAddr:   zeroIP(),
		GatewayAddr:  zeroIP(),
		Options:      opts,
	}
}

// Request builds a DHCPREQUEST message carrying the requested address.
func Request(xid uint32, chaddr net.HardwareAddr, ipaddr net.IP, extra ...Option) *Message {
	opts := NewOptionList(
		NewDHCPMessageType(MessageTypeRequest),
		NewRequestedIPAddress(ipaddr),
		defaultParamRequestList(),
	)
	for _, o := range extra {
		opts.Append(o)
	}
	return &Message{
		Op:           OpBootRequest,
		HwType:       HwTypeEthernet,
		Xid:          xid,
		ClientHwAddr: chaddr,
		ClientAddr:   zeroIP(),
		YourAddr:     zeroIP(),
		ServerAddr:   zeroIP(),
		GatewayAddr:  zeroIP(),
		Options:      opts,
	}
}

// Reply builds a bare BootReply echoing this request's transaction
// identity (xid, client hardware address, hardware type); the caller
// fills in the rest.
func (m *Message) Reply(extra ...Option) *Message {
	opts := NewOptionList()
	for _, o := range extra {
		opts.Append(o)
	}
	return &Message{
		Op:           OpBootReply,
		HwType:       m.HwType,
		Xid:          m.Xid,
		ClientHwAddr: m.ClientHwAddr,
		ClientAddr:   zeroIP(),
		YourAddr:     zeroIP(),
		ServerAddr:   zeroIP(),
		GatewayAddr:  zeroIP(),
		Options:      opts,
	}
}
