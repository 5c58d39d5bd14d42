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

	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

// duidEpoch is January 1, 2000 UTC: the zero point of the DUID-LLT
// time field.
var duidEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DUID names a DHCPv6 client or server persistently. Wire form is
// `duid-type:u16 || body`; the four defined bodies each have their own
// concrete type, and DecodeDUID dispatches on the type tag.
type DUID interface {
	Type() DuidType
	encodeBody(e *encoder)
}

// DecodeDUID parses `duid-type:u16 || body` into a concrete DUID.
func DecodeDUID(data []byte) (DUID, error) {
	d := newDecoder(data)
	t, err := d.uint16()
	if err != nil {
		return nil, err
	}
	decode, ok := duidRegistry[DuidType(t)]
	if !ok {
		return nil, fmt.Errorf("dhcpv6: unsupported DUID type %s", DuidType(t))
	}
	return decode(d)
}

// EncodeDUID serializes a DUID as `duid-type:u16 || body`.
func EncodeDUID(duid DUID) []byte {
	e := &encoder{}
	e.uint16(uint16(duid.Type()))
	duid.encodeBody(e)
	return e.buf
}

var duidRegistry = map[DuidType]func(d *decoder) (DUID, error){
	DuidLinkLayerPlusTime: decodeLinkLayerPlusTime,
	DuidEnterpriseNumber:  decodeEnterpriseNumber,
	DuidLinkLayer:         decodeLinkLayer,
	DuidUniqueIdentifier:  decodeUniqueIdentifier,
}

// LinkLayerPlusTime is DUID-LLT: hardware type, a timestamp in seconds
// since the 2000 epoch, and the link-layer address.
type LinkLayerPlusTime struct {
	HwType  dhcpv4.HwType
	Time    time.Time
	Address net.HardwareAddr
}

func (d *LinkLayerPlusTime) Type() DuidType { return DuidLinkLayerPlusTime }
func (d *LinkLayerPlusTime) encodeBody(e *encoder) {
	e.uint16(uint16(d.HwType))
	e.uint32(uint32(d.Time.Sub(duidEpoch) / time.Second))
	e.raw(d.Address)
}

func decodeLinkLayerPlusTime(d *decoder) (DUID, error) {
	hw, err := d.uint16()
	if err != nil {
		return nil, err
	}
	secs, err := d.uint32()
	if err != nil {
		return nil, err
	}
	return &LinkLayerPlusTime{
		HwType:  dhcpv4.HwType(hw),
		Time:    duidEpoch.Add(time.Duration(secs) * time.Second),
		Address: net.HardwareAddr(d.rest()),
	}, nil
}

// EnterpriseNumber is DUID-EN: an IANA enterprise number plus an
// opaque identifier.
type EnterpriseNumber struct {
	Number     uint32
	Identifier []byte
}

func (d *EnterpriseNumber) Type() DuidType { return DuidEnterpriseNumber }
func (d *EnterpriseNumber) encodeBody(e *encoder) {
	e.uint32(d.Number)
	e.raw(d.Identifier)
}

func decodeEnterpriseNumber(d *decoder) (DUID, error) {
	num, err := d.uint32()
	if err != nil {
		return nil, err
	}
	return &EnterpriseNumber{Number: num, Identifier: d.rest()}, nil
}

// LinkLayer is DUID-LL: hardware type plus link-layer address.
type LinkLayer struct {
	HwType  dhcpv4.HwType
	Address net.HardwareAddr
}

func (d *LinkLayer) Type() DuidType { return DuidLinkLayer }
func (d *LinkLayer) encodeBody(e *encoder) {
	e.uint16(uint16(d.HwType))
	e.raw(d.Address)
}

func decodeLinkLayer(d *decoder) (DUID, error) {
	hw, err := d.uint16()
	if err != nil {
		return nil, err
	}
	return &LinkLayer{HwType: dhcpv4.HwType(hw), Address: net.HardwareAddr(d.rest())}, nil
}

// UniqueIdentifier is DUID-UUID: an opaque identifier assigned at
// manufacture time.
type UniqueIdentifier struct {
	UUID []byte
}

func (d *UniqueIdentifier) Type() DuidType { return DuidUniqueIdentifier }
func (d *UniqueIdentifier) encodeBody(e *encoder) {
	e.raw(d.UUID)
}

func decodeUniqueIdentifier(d *decoder) (DUID, error) {
	return &UniqueIdentifier{UUID: d.rest()}, nil
}
