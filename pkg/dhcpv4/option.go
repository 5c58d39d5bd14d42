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
	"bytes"
	"fmt"
	"net"
	"sort"
	"time"
)

// Option is a single DHCPv4 TLV. Concrete option types carry their own
// typed payload and know how to pack it; Code identifies the option so
// OptionList can index by it.
type Option interface {
	Code() OptionCode
	encodePayload() ([]byte, error)
}

// optionDescriptor is the registry's per-code entry: how to decode a
// payload into its concrete option type.
type optionDescriptor struct {
	decode func(d *decoder) (Option, error)
}

// registry is the process-wide option table, built once at init and
// never mutated after. It is the tagged-union dispatch spec.md §9 asks
// for in place of the source's dynamic class-registry scan.
var registry = map[OptionCode]optionDescriptor{}

func register(code OptionCode, decode func(d *decoder) (Option, error)) {
	registry[code] = optionDescriptor{decode: decode}
}

// UnknownOption is the catch-all variant for option codes this registry
// has no typed descriptor for; it preserves the raw payload and the
// observed code so it round-trips even though this library can't
// interpret it.
type UnknownOption struct {
	code OptionCode
	Data []byte
}

func (o *UnknownOption) Code() OptionCode { return o.code }
func (o *UnknownOption) encodePayload() ([]byte, error) {
	return o.Data, nil
}

// decodeOption reads one `code:u8, length:u8, payload[length]` TLV from
// d and returns the concrete option, decoding its payload under a fresh
// sub-decoder so greedy codecs can't read past the option boundary.
func decodeOption(d *decoder) (Option, error) {
	code, err := d.uint8()
	if err != nil {
		return nil, err
	}
	oc := OptionCode(code)
	if oc == OptionPad {
		return nil, nil
	}
	if oc == OptionEnd {
		return &EndOption{}, nil
	}
	payload, err := d.sized(8)
	if err != nil {
		return nil, fmt.Errorf("dhcpv4: option %s: %w", oc, err)
	}
	sub := newDecoder(payload)
	desc, ok := registry[oc]
	if !ok {
		return &UnknownOption{code: oc, Data: payload}, nil
	}
	opt, err := desc.decode(sub)
	if err != nil {
		return nil, fmt.Errorf("dhcpv4: option %s: %w", oc, err)
	}
	return opt, nil
}

// encodeOption serializes one option as `code, length, payload`. Per
// spec.md §9's resolved open question, a payload over 255 bytes is
// rejected rather than silently truncated.
func encodeOption(e *encoder, opt Option) error {
	payload, err := opt.encodePayload()
	if err != nil {
		return err
	}
	if len(payload) > 0xFF {
		return fmt.Errorf("dhcpv4: option %s payload too long: %d bytes", opt.Code(), len(payload))
	}
	e.uint8(uint8(opt.Code()))
	e.uint8(uint8(len(payload)))
	e.raw(payload)
	return nil
}

// OptionList is an ordered sequence of Options with at most one entry
// per code. Re-inserting a code replaces it in place; Sort orders by
// numeric code, as required before transmit.
type OptionList struct {
	items []Option
	codes map[OptionCode]int
}

func NewOptionList(opts ...Option) *OptionList {
	l := &OptionList{codes: make(map[OptionCode]int)}
	for _, o := range opts {
		l.Append(o)
	}
	return l
}

// Append adds an option, replacing any existing option with the same
// code in place (preserving its position).
func (l *OptionList) Append(o Option) {
	if l.codes == nil {
		l.codes = make(map[OptionCode]int)
	}
	if idx, ok := l.codes[o.Code()]; ok {
		l.items[idx] = o
		return
	}
	l.codes[o.Code()] = len(l.items)
	l.items = append(l.items, o)
}

// Insert places o at position idx, shifting later entries right. If the
// code is already present it is removed from its old position first.
func (l *OptionList) Insert(idx int, o Option) {
	l.Remove(o.Code())
	if idx < 0 {
		idx = 0
	}
	if idx > len(l.items) {
		idx = len(l.items)
	}
	l.items = append(l.items, nil)
	copy(l.items[idx+1:], l.items[idx:])
	l.items[idx] = o
	l.reindex()
}

// SetDefault inserts o only if its code is not already present.
func (l *OptionList) SetDefault(idx int, o Option) {
	if l.Has(o.Code()) {
		return
	}
	l.Insert(idx, o)
}

func (l *OptionList) Remove(code OptionCode) {
	idx, ok := l.codes[code]
	if !ok {
		return
	}
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	l.reindex()
}

func (l *OptionList) reindex() {
	l.codes = make(map[OptionCode]int, len(l.items))
	for i, o := range l.items {
		l.codes[o.Code()] = i
	}
}

func (l *OptionList) Has(code OptionCode) bool {
	_, ok := l.codes[code]
	return ok
}

func (l *OptionList) Get(code OptionCode) Option {
	idx, ok := l.codes[code]
	if !ok {
		return nil
	}
	return l.items[idx]
}

func (l *OptionList) Len() int { return len(l.items) }

// All returns the options in their current order; callers must not
// mutate the returned slice.
func (l *OptionList) All() []Option { return l.items }

// MoveToStart re-positions the option for code to index 0.
func (l *OptionList) MoveToStart(code OptionCode) {
	idx, ok := l.codes[code]
	if !ok || idx == 0 {
		return
	}
	o := l.items[idx]
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	l.items = append([]Option{o}, l.items...)
	l.reindex()
}

// Sort orders entries by numeric code, ascending. Required before
// transmit (spec.md §4.7(e), §8).
func (l *OptionList) Sort() {
	sort.SliceStable(l.items, func(i, j int) bool {
		return l.items[i].Code() < l.items[j].Code()
	})
	l.reindex()
}

// GetAs retrieves the option for code and type-asserts it to T,
// returning ok=false if absent or of a different concrete type.
func GetAs[T Option](l *OptionList, code OptionCode) (T, bool) {
	var zero T
	o := l.Get(code)
	if o == nil {
		return zero, false
	}
	t, ok := o.(T)
	return t, ok
}

// ===== Concrete option types =====

// EndOption is the 0xFF sentinel terminating the options area. It is
// never emitted by encodeOption directly (Message.Encode appends the
// terminating byte itself); it exists so decodeOption can hand back a
// typed value if End is ever looked up.
type EndOption struct{}

func (o *EndOption) Code() OptionCode               { return OptionEnd }
func (o *EndOption) encodePayload() ([]byte, error) { return nil, nil }

type ipv4Option struct {
	code OptionCode
	IP   net.IP
}

func (o *ipv4Option) Code() OptionCode { return o.code }
func (o *ipv4Option) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.ipv4(o.IP)
	return e.buf, nil
}
// decodeIPv4As wraps the decoded address in its concrete option type so
// type-asserting accessors see the same type on both the construction
// and decode paths.
func decodeIPv4As(wrap func(net.IP) Option) func(*decoder) (Option, error) {
	return func(d *decoder) (Option, error) {
		ip, err := d.ipv4()
		if err != nil {
			return nil, err
		}
		return wrap(ip), nil
	}
}

// SubnetMask is option 1.
type SubnetMask struct{ *ipv4Option }

func NewSubnetMask(ip net.IP) *SubnetMask {
	return &SubnetMask{&ipv4Option{code: OptionSubnetMask, IP: ip}}
}

// BroadcastAddress is option 28.
type BroadcastAddress struct{ *ipv4Option }

func NewBroadcastAddress(ip net.IP) *BroadcastAddress {
	return &BroadcastAddress{&ipv4Option{code: OptionBroadcastAddress, IP: ip}}
}

// RequestedIPAddress is option 50.
type RequestedIPAddress struct{ *ipv4Option }

func NewRequestedIPAddress(ip net.IP) *RequestedIPAddress {
	return &RequestedIPAddress{&ipv4Option{code: OptionRequestedIPAddress, IP: ip}}
}

// ServerIdentifier is option 54.
type ServerIdentifier struct{ *ipv4Option }

func NewServerIdentifier(ip net.IP) *ServerIdentifier {
	return &ServerIdentifier{&ipv4Option{code: OptionServerIdentifier, IP: ip}}
}

// TFTPServerIPAddress is option 128.
type TFTPServerIPAddress struct{ *ipv4Option }

func NewTFTPServerIPAddress(ip net.IP) *TFTPServerIPAddress {
	return &TFTPServerIPAddress{&ipv4Option{code: OptionTFTPServerIPAddress, IP: ip}}
}

type ipv4ListOption struct {
	code OptionCode
	IPs  []net.IP
}

func (o *ipv4ListOption) Code() OptionCode { return o.code }
func (o *ipv4ListOption) encodePayload() ([]byte, error) {
	e := &encoder{}
	for _, ip := range o.IPs {
		e.ipv4(ip)
	}
	return e.buf, nil
}
func decodeIPv4ListAs(wrap func([]net.IP) Option) func(*decoder) (Option, error) {
	return func(d *decoder) (Option, error) {
		var ips []net.IP
		for d.remaining() > 0 {
			ip, err := d.ipv4()
			if err != nil {
				return nil, err
			}
			ips = append(ips, ip)
		}
		return wrap(ips), nil
	}
}

// Router is option 3.
type Router struct{ *ipv4ListOption }

func NewRouter(ips ...net.IP) *Router {
	return &Router{&ipv4ListOption{code: OptionRouter, IPs: ips}}
}

// DomainNameServer is option 6.
type DomainNameServer struct{ *ipv4ListOption }

func NewDomainNameServer(ips ...net.IP) *DomainNameServer {
	return &DomainNameServer{&ipv4ListOption{code: OptionDomainNameServer, IPs: ips}}
}

type stringOption struct {
	code  OptionCode
	Value string
}

func (o *stringOption) Code() OptionCode { return o.code }
func (o *stringOption) encodePayload() ([]byte, error) {
	return []byte(o.Value), nil
}
func decodeStringAs(wrap func(string) Option) func(*decoder) (Option, error) {
	return func(d *decoder) (Option, error) {
		return wrap(string(bytes.TrimRight(d.rest(), "\x00"))), nil
	}
}

// Hostname is option 12.
type Hostname struct{ *stringOption }

func NewHostname(v string) *Hostname { return &Hostname{&stringOption{code: OptionHostname, Value: v}} }

// DomainName is option 15.
type DomainName struct{ *stringOption }

func NewDomainName(v string) *DomainName {
	return &DomainName{&stringOption{code: OptionDomainName, Value: v}}
}

// ClassIdentifier is option 60, also known as VendorClassIdentifier.
type ClassIdentifier struct{ *stringOption }

func NewClassIdentifier(v string) *ClassIdentifier {
	return &ClassIdentifier{&stringOption{code: OptionClassIdentifier, Value: v}}
}

// NewVendorClassIdentifier is an alias for NewClassIdentifier: option 60
// carries the same string whether a caller thinks of it as the class
// identifier or the vendor class identifier.
func NewVendorClassIdentifier(v string) *ClassIdentifier { return NewClassIdentifier(v) }

// TFTPServerName is option 66.
type TFTPServerName struct{ *stringOption }

func NewTFTPServerName(v string) *TFTPServerName {
	return &TFTPServerName{&stringOption{code: OptionTFTPServerName, Value: v}}
}

// BootfileName is option 67.
type BootfileName struct{ *stringOption }

func NewBootfileName(v string) *BootfileName {
	return &BootfileName{&stringOption{code: OptionBootfileName, Value: v}}
}

// PXELinuxPathPrefix is option 210.
type PXELinuxPathPrefix struct{ *stringOption }

func NewPXELinuxPathPrefix(v string) *PXELinuxPathPrefix {
	return &PXELinuxPathPrefix{&stringOption{code: OptionPXELinuxPathPrefix, Value: v}}
}

type bytesOption struct {
	code OptionCode
	Data []byte
}

func (o *bytesOption) Code() OptionCode { return o.code }
func (o *bytesOption) encodePayload() ([]byte, error) {
	return o.Data, nil
}
func decodeBytesAs(wrap func([]byte) Option) func(*decoder) (Option, error) {
	return func(d *decoder) (Option, error) {
		return wrap(d.rest()), nil
	}
}

// UserClassInformation is option 77.
type UserClassInformation struct{ *bytesOption }

func NewUserClassInformation(v []byte) *UserClassInformation {
	return &UserClassInformation{&bytesOption{code: OptionUserClassInformation, Data: v}}
}

// ClientMachineIdentifier is option 97.
type ClientMachineIdentifier struct{ *bytesOption }

func NewClientMachineIdentifier(v []byte) *ClientMachineIdentifier {
	return &ClientMachineIdentifier{&bytesOption{code: OptionClientMachineIdentifier, Data: v}}
}

// durationOption wraps a u32 seconds count.
type durationOption struct {
	code  OptionCode
	Value time.Duration
}

func (o *durationOption) Code() OptionCode { return o.code }
func (o *durationOption) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint32(uint32(o.Value / time.Second))
	return e.buf, nil
}
func decodeDurationAs(wrap func(time.Duration) Option) func(*decoder) (Option, error) {
	return func(d *decoder) (Option, error) {
		v, err := d.uint32()
		if err != nil {
			return nil, err
		}
		return wrap(time.Duration(v) * time.Second), nil
	}
}

// IPAddressLeaseTime is option 51.
type IPAddressLeaseTime struct{ *durationOption }

func NewIPAddressLeaseTime(d time.Duration) *IPAddressLeaseTime {
	return &IPAddressLeaseTime{&durationOption{code: OptionIPAddressLeaseTime, Value: d}}
}

// RenewTime is option 58.
type RenewTime struct{ *durationOption }

func NewRenewTime(d time.Duration) *RenewTime {
	return &RenewTime{&durationOption{code: OptionRenewTime, Value: d}}
}

// RebindTime is option 59.
type RebindTime struct{ *durationOption }

func NewRebindTime(d time.Duration) *RebindTime {
	return &RebindTime{&durationOption{code: OptionRebindTime, Value: d}}
}

// DHCPMessageType is option 53.
type DHCPMessageType struct {
	Type MessageType
}

func NewDHCPMessageType(t MessageType) *DHCPMessageType { return &DHCPMessageType{Type: t} }
func (o *DHCPMessageType) Code() OptionCode             { return OptionDHCPMessageType }
func (o *DHCPMessageType) encodePayload() ([]byte, error) {
	return []byte{byte(o.Type)}, nil
}
func decodeDHCPMessageType(d *decoder) (Option, error) {
	v, err := d.uint8()
	if err != nil {
		return nil, err
	}
	return &DHCPMessageType{Type: MessageType(v)}, nil
}

// ParameterRequestList is option 55.
type ParameterRequestList struct {
	Codes []OptionCode
}

func NewParameterRequestList(codes ...OptionCode) *ParameterRequestList {
	return &ParameterRequestList{Codes: codes}
}
func (o *ParameterRequestList) Code() OptionCode { return OptionParameterRequestList }
func (o *ParameterRequestList) encodePayload() ([]byte, error) {
	e := &encoder{}
	for _, c := range o.Codes {
		e.uint8(uint8(c))
	}
	return e.buf, nil
}
func decodeParameterRequestList(d *decoder) (Option, error) {
	var codes []OptionCode
	for d.remaining() > 0 {
		v, err := d.uint8()
		if err != nil {
			return nil, err
		}
		codes = append(codes, OptionCode(v))
	}
	return &ParameterRequestList{Codes: codes}, nil
}

// MaxDHCPMessageSize is option 57.
type MaxDHCPMessageSize struct {
	Size uint16
}

func NewMaxDHCPMessageSize(v uint16) *MaxDHCPMessageSize { return &MaxDHCPMessageSize{Size: v} }
func (o *MaxDHCPMessageSize) Code() OptionCode           { return OptionMaxDHCPMessageSize }
func (o *MaxDHCPMessageSize) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint16(o.Size)
	return e.buf, nil
}
func decodeMaxDHCPMessageSize(d *decoder) (Option, error) {
	v, err := d.uint16()
	if err != nil {
		return nil, err
	}
	return &MaxDHCPMessageSize{Size: v}, nil
}

// ClientSystemArchitectureType is option 93: a greedy list of u16 arch codes.
type ClientSystemArchitectureType struct {
	Arches []Arch
}

func NewClientSystemArchitectureType(arches ...Arch) *ClientSystemArchitectureType {
	return &ClientSystemArchitectureType{Arches: arches}
}
func (o *ClientSystemArchitectureType) Code() OptionCode { return OptionClientSystemArchitectureType }
func (o *ClientSystemArchitectureType) encodePayload() ([]byte, error) {
	e := &encoder{}
	for _, a := range o.Arches {
		e.uint16(uint16(a))
	}
	return e.buf, nil
}
func decodeClientSystemArchitectureType(d *decoder) (Option, error) {
	var arches []Arch
	for d.remaining() > 0 {
		v, err := d.uint16()
		if err != nil {
			return nil, err
		}
		arches = append(arches, Arch(v))
	}
	return &ClientSystemArchitectureType{Arches: arches}, nil
}

// ClientNetworkInterfaceID is option 94: type(1)=1, major(1), minor(1).
type ClientNetworkInterfaceID struct {
	Major, Minor uint8
}

func NewClientNetworkInterfaceID(major, minor uint8) *ClientNetworkInterfaceID {
	return &ClientNetworkInterfaceID{Major: major, Minor: minor}
}
func (o *ClientNetworkInterfaceID) Code() OptionCode { return OptionClientNetworkInterfaceID }
func (o *ClientNetworkInterfaceID) encodePayload() ([]byte, error) {
	return []byte{1, o.Major, o.Minor}, nil
}
func decodeClientNetworkInterfaceID(d *decoder) (Option, error) {
	b, err := d.bytes(3)
	if err != nil {
		return nil, err
	}
	return &ClientNetworkInterfaceID{Major: b[1], Minor: b[2]}, nil
}

// DNSDomainSearchList is option 119: RFC 1035-compressed domain name list.
type DNSDomainSearchList struct {
	Domains []string
}

func NewDNSDomainSearchList(domains ...string) *DNSDomainSearchList {
	return &DNSDomainSearchList{Domains: domains}
}
func (o *DNSDomainSearchList) Code() OptionCode { return OptionDNSDomainSearchList }
func (o *DNSDomainSearchList) encodePayload() ([]byte, error) {
	return packRFC1035Labels(o.Domains), nil
}
func decodeDNSDomainSearchList(d *decoder) (Option, error) {
	domains, err := rfc1035Labels(d)
	if err != nil {
		return nil, err
	}
	return &DNSDomainSearchList{Domains: domains}, nil
}

// StatusCodeOption is option 151: 8-bit status code + a greedy message.
type StatusCodeOption struct {
	Code_   StatusCode
	Message string
}

func NewStatusCodeOption(code StatusCode, msg string) *StatusCodeOption {
	return &StatusCodeOption{Code_: code, Message: msg}
}
func (o *StatusCodeOption) Code() OptionCode { return OptionStatusCode }
func (o *StatusCodeOption) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint8(uint8(o.Code_))
	e.raw([]byte(o.Message))
	return e.buf, nil
}
func decodeStatusCodeOption(d *decoder) (Option, error) {
	v, err := d.uint8()
	if err != nil {
		return nil, err
	}
	return &StatusCodeOption{Code_: StatusCode(v), Message: string(d.rest())}, nil
}

func init() {
	register(OptionSubnetMask, decodeIPv4As(func(ip net.IP) Option { return NewSubnetMask(ip) }))
	register(OptionBroadcastAddress, decodeIPv4As(func(ip net.IP) Option { return NewBroadcastAddress(ip) }))
	register(OptionRequestedIPAddress, decodeIPv4As(func(ip net.IP) Option { return NewRequestedIPAddress(ip) }))
	register(OptionServerIdentifier, decodeIPv4As(func(ip net.IP) Option { return NewServerIdentifier(ip) }))
	register(OptionTFTPServerIPAddress, decodeIPv4As(func(ip net.IP) Option { return NewTFTPServerIPAddress(ip) }))

	register(OptionRouter, decodeIPv4ListAs(func(ips []net.IP) Option { return NewRouter(ips...) }))
	register(OptionDomainNameServer, decodeIPv4ListAs(func(ips []net.IP) Option { return NewDomainNameServer(ips...) }))

	register(OptionHostname, decodeStringAs(func(v string) Option { return NewHostname(v) }))
	register(OptionDomainName, decodeStringAs(func(v string) Option { return NewDomainName(v) }))
	register(OptionClassIdentifier, decodeStringAs(func(v string) Option { return NewClassIdentifier(v) }))
	register(OptionTFTPServerName, decodeStringAs(func(v string) Option { return NewTFTPServerName(v) }))
	register(OptionBootfileName, decodeStringAs(func(v string) Option { return NewBootfileName(v) }))
	register(OptionPXELinuxPathPrefix, decodeStringAs(func(v string) Option { return NewPXELinuxPathPrefix(v) }))

	register(OptionUserClassInformation, decodeBytesAs(func(v []byte) Option { return NewUserClassInformation(v) }))
	register(OptionClientMachineIdentifier, decodeBytesAs(func(v []byte) Option { return NewClientMachineIdentifier(v) }))

	register(OptionIPAddressLeaseTime, decodeDurationAs(func(d time.Duration) Option { return NewIPAddressLeaseTime(d) }))
	register(OptionRenewTime, decodeDurationAs(func(d time.Duration) Option { return NewRenewTime(d) }))
	register(OptionRebindTime, decodeDurationAs(func(d time.Duration) Option { return NewRebindTime(d) }))

	register(OptionDHCPMessageType, decodeDHCPMessageType)
	register(OptionParameterRequestList, decodeParameterRequestList)
	register(OptionMaxDHCPMessageSize, decodeMaxDHCPMessageSize)
	register(OptionClientSystemArchitectureType, decodeClientSystemArchitectureType)
	register(OptionClientNetworkInterfaceID, decodeClientNetworkInterfaceID)
	register(OptionDNSDomainSearchList, decodeDNSDomainSearchList)
	register(OptionStatusCode, decodeStatusCodeOption)
}
