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

package dhcpv6

import (
	"fmt"
	"net"
	"time"
)

// Option is a single DHCPv6 TLV; wire form is
// `code:u16 || length:u16 || payload`.
type Option interface {
	Code() OptionCode
	encodePayload() ([]byte, error)
}

var registry = map[OptionCode]func(d *decoder) (Option, error){}

func register(code OptionCode, decode func(d *decoder) (Option, error)) {
	registry[code] = decode
}

// UnknownOption preserves the payload of option codes this registry has
// no typed descriptor for.
type UnknownOption struct {
	code OptionCode
	Data []byte
}

func (o *UnknownOption) Code() OptionCode               { return o.code }
func (o *UnknownOption) encodePayload() ([]byte, error) { return o.Data, nil }

func decodeOption(d *decoder) (Option, error) {
	code, err := d.uint16()
	if err != nil {
		return nil, err
	}
	length, err := d.uint16()
	if err != nil {
		return nil, err
	}
	payload, err := d.bytes(int(length))
	if err != nil {
		return nil, fmt.Errorf("dhcpv6: option %s: %w", OptionCode(code), err)
	}
	sub := newDecoder(payload)
	decode, ok := registry[OptionCode(code)]
	if !ok {
		return &UnknownOption{code: OptionCode(code), Data: payload}, nil
	}
	opt, err := decode(sub)
	if err != nil {
		return nil, fmt.Errorf("dhcpv6: option %s: %w", OptionCode(code), err)
	}
	return opt, nil
}

func encodeOption(e *encoder, opt Option) error {
	payload, err := opt.encodePayload()
	if err != nil {
		return err
	}
	if len(payload) > 0xFFFF {
		return fmt.Errorf("dhcpv6: option %s payload too long: %d bytes", opt.Code(), len(payload))
	}
	e.uint16(uint16(opt.Code()))
	e.uint16(uint16(len(payload)))
	e.raw(payload)
	return nil
}

// OptionList is an ordered option sequence with at most one entry per
// code; re-appending a code replaces it in place.
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

func (l *OptionList) Get(code OptionCode) Option {
	idx, ok := l.codes[code]
	if !ok {
		return nil
	}
	return l.items[idx]
}

func (l *OptionList) Has(code OptionCode) bool {
	_, ok := l.codes[code]
	return ok
}

func (l *OptionList) Len() int { return len(l.items) }

// All returns the options in order; callers must not mutate the
// returned slice.
func (l *OptionList) All() []Option { return l.items }

// GetAs retrieves the option for code and type-asserts it to T.
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

// duidOption carries a DUID payload; ClientIdentifier and
// ServerIdentifier share it.
type duidOption struct {
	code OptionCode
	DUID DUID
}

func (o *duidOption) Code() OptionCode { return o.code }
func (o *duidOption) encodePayload() ([]byte, error) {
	return EncodeDUID(o.DUID), nil
}
// decodeDuidAs wraps the decoded DUID in its concrete option type so
// type-asserting callers see the same type on both paths.
func decodeDuidAs(wrap func(DUID) Option) func(*decoder) (Option, error) {
	return func(d *decoder) (Option, error) {
		duid, err := DecodeDUID(d.rest())
		if err != nil {
			return nil, err
		}
		return wrap(duid), nil
	}
}

// ClientIdentifier is option 1.
type ClientIdentifier struct{ *duidOption }

func NewClientIdentifier(duid DUID) *ClientIdentifier {
	return &ClientIdentifier{&duidOption{code: OptionClientIdentifier, DUID: duid}}
}

// ServerIdentifier is option 2.
type ServerIdentifier struct{ *duidOption }

func NewServerIdentifier(duid DUID) *ServerIdentifier {
	return &ServerIdentifier{&duidOption{code: OptionServerIdentifier, DUID: duid}}
}

// IANA is option 3 (IA_NA): a non-temporary address association.
// Nested options are kept raw; callers decode them with DecodeOptions
// when needed.
type IANA struct {
	IAID    uint32
	T1, T2  time.Duration
	Options []byte
}

func NewIANA(iaid uint32, t1, t2 time.Duration, options []byte) *IANA {
	return &IANA{IAID: iaid, T1: t1, T2: t2, Options: options}
}
func (o *IANA) Code() OptionCode { return OptionIANA }
func (o *IANA) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint32(o.IAID)
	e.uint32(uint32(o.T1 / time.Second))
	e.uint32(uint32(o.T2 / time.Second))
	e.raw(o.Options)
	return e.buf, nil
}
func decodeIANA(d *decoder) (Option, error) {
	iaid, err := d.uint32()
	if err != nil {
		return nil, err
	}
	t1, err := d.uint32()
	if err != nil {
		return nil, err
	}
	t2, err := d.uint32()
	if err != nil {
		return nil, err
	}
	return &IANA{
		IAID:    iaid,
		T1:      time.Duration(t1) * time.Second,
		T2:      time.Duration(t2) * time.Second,
		Options: d.rest(),
	}, nil
}

// IATA is option 4 (IA_TA): a temporary address association.
type IATA struct {
	IAID    uint32
	Options []byte
}

func NewIATA(iaid uint32, options []byte) *IATA { return &IATA{IAID: iaid, Options: options} }
func (o *IATA) Code() OptionCode                { return OptionIATA }
func (o *IATA) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint32(o.IAID)
	e.raw(o.Options)
	return e.buf, nil
}
func decodeIATA(d *decoder) (Option, error) {
	iaid, err := d.uint32()
	if err != nil {
		return nil, err
	}
	return &IATA{IAID: iaid, Options: d.rest()}, nil
}

// IAAddress is option 5 (IAADDR): one address inside an IA, with its
// preferred and valid lifetimes.
type IAAddress struct {
	IP               net.IP
	Preferred, Valid time.Duration
	Options          []byte
}

func NewIAAddress(ip net.IP, preferred, valid time.Duration) *IAAddress {
	return &IAAddress{IP: ip, Preferred: preferred, Valid: valid}
}
func (o *IAAddress) Code() OptionCode { return OptionIAAddress }
func (o *IAAddress) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.ipv6(o.IP)
	e.uint32(uint32(o.Preferred / time.Second))
	e.uint32(uint32(o.Valid / time.Second))
	e.raw(o.Options)
	return e.buf, nil
}
func decodeIAAddress(d *decoder) (Option, error) {
	ip, err := d.ipv6()
	if err != nil {
		return nil, err
	}
	preferred, err := d.uint32()
	if err != nil {
		return nil, err
	}
	valid, err := d.uint32()
	if err != nil {
		return nil, err
	}
	return &IAAddress{
		IP:        ip,
		Preferred: time.Duration(preferred) * time.Second,
		Valid:     time.Duration(valid) * time.Second,
		Options:   d.rest(),
	}, nil
}

// OptionRequest is option 6: the option codes the client wants.
type OptionRequest struct {
	Codes []OptionCode
}

func NewOptionRequest(codes ...OptionCode) *OptionRequest { return &OptionRequest{Codes: codes} }
func (o *OptionRequest) Code() OptionCode                 { return OptionOptionRequest }
func (o *OptionRequest) encodePayload() ([]byte, error) {
	e := &encoder{}
	for _, c := range o.Codes {
		e.uint16(uint16(c))
	}
	return e.buf, nil
}
func decodeOptionRequest(d *decoder) (Option, error) {
	var codes []OptionCode
	for d.remaining() > 0 {
		v, err := d.uint16()
		if err != nil {
			return nil, err
		}
		codes = append(codes, OptionCode(v))
	}
	return &OptionRequest{Codes: codes}, nil
}

// Preference is option 7.
type Preference struct {
	Value uint8
}

func NewPreference(v uint8) *Preference { return &Preference{Value: v} }
func (o *Preference) Code() OptionCode  { return OptionPreference }
func (o *Preference) encodePayload() ([]byte, error) {
	return []byte{o.Value}, nil
}
func decodePreference(d *decoder) (Option, error) {
	v, err := d.uint8()
	if err != nil {
		return nil, err
	}
	return &Preference{Value: v}, nil
}

// ElapsedTime is option 8: time since the client began the exchange,
// carried on the wire in hundredths of a second.
type ElapsedTime struct {
	Elapsed time.Duration
}

func NewElapsedTime(d time.Duration) *ElapsedTime { return &ElapsedTime{Elapsed: d} }
func (o *ElapsedTime) Code() OptionCode           { return OptionElapsedTime }
func (o *ElapsedTime) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint16(uint16(o.Elapsed / (10 * time.Millisecond)))
	return e.buf, nil
}
func decodeElapsedTime(d *decoder) (Option, error) {
	v, err := d.uint16()
	if err != nil {
		return nil, err
	}
	return &ElapsedTime{Elapsed: time.Duration(v) * 10 * time.Millisecond}, nil
}

// RelayMessage is option 9: the encapsulated message a relay carries.
type RelayMessage struct {
	Data []byte
}

func NewRelayMessage(data []byte) *RelayMessage { return &RelayMessage{Data: data} }
func (o *RelayMessage) Code() OptionCode        { return OptionRelayMessage }
func (o *RelayMessage) encodePayload() ([]byte, error) {
	return o.Data, nil
}
func decodeRelayMessage(d *decoder) (Option, error) {
	return &RelayMessage{Data: d.rest()}, nil
}

// Authentication is option 11.
type Authentication struct {
	Protocol        uint8
	Algorithm       uint8
	RDM             uint8
	ReplayDetection [8]byte
	Info            []byte
}

func (o *Authentication) Code() OptionCode { return OptionAuthentication }
func (o *Authentication) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint8(o.Protocol)
	e.uint8(o.Algorithm)
	e.uint8(o.RDM)
	e.static(o.ReplayDetection[:], 8)
	e.raw(o.Info)
	return e.buf, nil
}
func decodeAuthentication(d *decoder) (Option, error) {
	protocol, err := d.uint8()
	if err != nil {
		return nil, err
	}
	algorithm, err := d.uint8()
	if err != nil {
		return nil, err
	}
	rdm, err := d.uint8()
	if err != nil {
		return nil, err
	}
	replay, err := d.bytes(8)
	if err != nil {
		return nil, err
	}
	auth := &Authentication{Protocol: protocol, Algorithm: algorithm, RDM: rdm, Info: d.rest()}
	copy(auth.ReplayDetection[:], replay)
	return auth, nil
}

// ServerUnicast is option 12: the server address a client may unicast to.
type ServerUnicast struct {
	IP net.IP
}

func NewServerUnicast(ip net.IP) *ServerUnicast { return &ServerUnicast{IP: ip} }
func (o *ServerUnicast) Code() OptionCode       { return OptionServerUnicast }
func (o *ServerUnicast) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.ipv6(o.IP)
	return e.buf, nil
}
func decodeServerUnicast(d *decoder) (Option, error) {
	ip, err := d.ipv6()
	if err != nil {
		return nil, err
	}
	return &ServerUnicast{IP: ip}, nil
}

// StatusCodeOption is option 13: a 16-bit status code plus a greedy
// message.
type StatusCodeOption struct {
	Status  StatusCode
	Message string
}

func NewStatusCodeOption(status StatusCode, msg string) *StatusCodeOption {
	return &StatusCodeOption{Status: status, Message: msg}
}
func (o *StatusCodeOption) Code() OptionCode { return OptionStatusCode }
func (o *StatusCodeOption) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint16(uint16(o.Status))
	e.raw([]byte(o.Message))
	return e.buf, nil
}
func decodeStatusCodeOption(d *decoder) (Option, error) {
	v, err := d.uint16()
	if err != nil {
		return nil, err
	}
	return &StatusCodeOption{Status: StatusCode(v), Message: string(d.rest())}, nil
}

// IAPD is option 25 (IA_PD): a prefix-delegation association.
type IAPD struct {
	IAID    uint32
	T1, T2  time.Duration
	Options []byte
}

func NewIAPD(iaid uint32, t1, t2 time.Duration, options []byte) *IAPD {
	return &IAPD{IAID: iaid, T1: t1, T2: t2, Options: options}
}
func (o *IAPD) Code() OptionCode { return OptionIAPD }
func (o *IAPD) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint32(o.IAID)
	e.uint32(uint32(o.T1 / time.Second))
	e.uint32(uint32(o.T2 / time.Second))
	e.raw(o.Options)
	return e.buf, nil
}
func decodeIAPD(d *decoder) (Option, error) {
	iaid, err := d.uint32()
	if err != nil {
		return nil, err
	}
	t1, err := d.uint32()
	if err != nil {
		return nil, err
	}
	t2, err := d.uint32()
	if err != nil {
		return nil, err
	}
	return &IAPD{
		IAID:    iaid,
		T1:      time.Duration(t1) * time.Second,
		T2:      time.Duration(t2) * time.Second,
		Options: d.rest(),
	}, nil
}

// IAPrefix is option 26: one delegated prefix inside an IA_PD.
type IAPrefix struct {
	Preferred, Valid time.Duration
	PrefixLength     uint8
	Prefix           net.IP
	Options          []byte
}

func NewIAPrefix(prefix net.IP, length uint8, preferred, valid time.Duration) *IAPrefix {
	return &IAPrefix{Prefix: prefix, PrefixLength: length, Preferred: preferred, Valid: valid}
}
func (o *IAPrefix) Code() OptionCode { return OptionIAPrefix }
func (o *IAPrefix) encodePayload() ([]byte, error) {
	e := &encoder{}
	e.uint32(uint32(o.Preferred / time.Second))
	e.uint32(uint32(o.Valid / time.Second))
	e.uint8(o.PrefixLength)
	e.ipv6(o.Prefix)
	e.raw(o.Options)
	return e.buf, nil
}
func decodeIAPrefix(d *decoder) (Option, error) {
	preferred, err := d.uint32()
	if err != nil {
		return nil, err
	}
	valid, err := d.uint32()
	if err != nil {
		return nil, err
	}
	length, err := d.uint8()
	if err != nil {
		return nil, err
	}
	prefix, err := d.ipv6()
	if err != nil {
		return nil, err
	}
	return &IAPrefix{
		Preferred:    time.Duration(preferred) * time.Second,
		Valid:        time.Duration(valid) * time.Second,
		PrefixLength: length,
		Prefix:       prefix,
		Options:      d.rest(),
	}, nil
}

// DecodeOptions parses a run of nested options (the Options payload of
// an IA_NA, IA_TA, or IA_PD).
func DecodeOptions(data []byte) (*OptionList, error) {
	d := newDecoder(data)
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

func init() {
	register(OptionClientIdentifier, decodeDuidAs(func(d DUID) Option { return NewClientIdentifier(d) }))
	register(OptionServerIdentifier, decodeDuidAs(func(d DUID) Option { return NewServerIdentifier(d) }))
	register(OptionIANA, decodeIANA)
	register(OptionIATA, decodeIATA)
	register(OptionIAAddress, decodeIAAddress)
	register(OptionOptionRequest, decodeOptionRequest)
	register(OptionPreference, decodePreference)
	register(OptionElapsedTime, decodeElapsedTime)
	register(OptionRelayMessage, decodeRelayMessage)
	register(OptionAuthentication, decodeAuthentication)
	register(OptionServerUnicast, decodeServerUnicast)
	register(OptionStatusCode, decodeStatusCodeOption)
	register(OptionIAPD, decodeIAPD)
	register(OptionIAPrefix, decodeIAPrefix)
}
