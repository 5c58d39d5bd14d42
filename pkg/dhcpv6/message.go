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

// Package dhcpv6 is a wire codec for DHCPv6 messages, options, and
// DUIDs. Server behavior for v6 is out of scope; the codec exists for
// protocol symmetry with pkg/dhcpv4.
package dhcpv6

import (
	"fmt"
	"net"
)

// Message is a client/server DHCPv6 message: `op:u8, xid:u24`, then
// options.
type Message struct {
	Op      MessageType
	Xid     uint32 // 24 bits on the wire
	Options *OptionList
}

// Decode parses a client/server message.
func Decode(data []byte) (*Message, error) {
	d := newDecoder(data)
	op, err := d.uint8()
	if err != nil {
		return nil, err
	}
	xid, err := d.uint24()
	if err != nil {
		return nil, err
	}
	opts, err := readOptions(d)
	if err != nil {
		return nil, err
	}
	return &Message{Op: MessageType(op), Xid: xid, Options: opts}, nil
}

// Encode serializes the message. The transaction id is truncated to its
// 24-bit wire width.
func (m *Message) Encode() ([]byte, error) {
	e := &encoder{}
	e.uint8(uint8(m.Op))
	e.uint24(m.Xid & 0xFFFFFF)
	if err := writeOptions(e, m.Options); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// RelayForward is a relay-agent message toward the server:
// `op:u8, hops:u16`, the link and peer addresses, then options
// (typically a single RelayMessage).
type RelayForward struct {
	Hops     uint16
	LinkAddr net.IP
	PeerAddr net.IP
	Options  *OptionList
}

func DecodeRelayForward(data []byte) (*RelayForward, error) {
	d := newDecoder(data)
	op, err := d.uint8()
	if err != nil {
		return nil, err
	}
	if MessageType(op) != MessageTypeRelayForward {
		return nil, fmt.Errorf("dhcpv6: not a RelayForward message: %s", MessageType(op))
	}
	hops, err := d.uint16()
	if err != nil {
		return nil, err
	}
	link, err := d.ipv6()
	if err != nil {
		return nil, err
	}
	peer, err := d.ipv6()
	if err != nil {
		return nil, err
	}
	opts, err := readOptions(d)
	if err != nil {
		return nil, err
	}
	return &RelayForward{Hops: hops, LinkAddr: link, PeerAddr: peer, Options: opts}, nil
}

func (m *RelayForward) Encode() ([]byte, error) {
	e := &encoder{}
	e.uint8(uint8(MessageTypeRelayForward))
	e.uint16(m.Hops)
	e.ipv6(m.LinkAddr)
	e.ipv6(m.PeerAddr)
	if err := writeOptions(e, m.Options); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// RelayReply is a relay-agent message toward the client; unlike
// RelayForward it carries no hop count.
type RelayReply struct {
	LinkAddr net.IP
	PeerAddr net.IP
	Options  *OptionList
}

func DecodeRelayReply(data []byte) (*RelayReply, error) {
	d := newDecoder(data)
	op, err := d.uint8()
	if err != nil {
		return nil, err
	}
	if MessageType(op) != MessageTypeRelayReply {
		return nil, fmt.Errorf("dhcpv6: not a RelayReply message: %s", MessageType(op))
	}
	link, err := d.ipv6()
	if err != nil {
		return nil, err
	}
	peer, err := d.ipv6()
	if err != nil {
		return nil, err
	}
	opts, err := readOptions(d)
	if err != nil {
		return nil, err
	}
	return &RelayReply{LinkAddr: link, PeerAddr: peer, Options: opts}, nil
}

func (m *RelayReply) Encode() ([]byte, error) {
	e := &encoder{}
	e.uint8(uint8(MessageTypeRelayReply))
	e.ipv6(m.LinkAddr)
	e.ipv6(m.PeerAddr)
	if err := writeOptions(e, m.Options); err != nil {
		return nil, err
	}
	return e.buf, nil
}

func readOptions(d *decoder) (*OptionList, error) {
	opts := NewOptionList()
	for d.remaining() > 0 {
		opt, err := decodeOption(d)
		if err != nil {
			return nil, err
		}
		opts.Append(opt)
	}
	return opts, nil
}

func writeOptions(e *encoder, opts *OptionList) error {
	if opts == nil {
		return nil
	}
	for _, opt := range opts.All() {
		if err := encodeOption(e, opt); err != nil {
			return err
		}
	}
	return nil
}
