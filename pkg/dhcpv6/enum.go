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

	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

// StatusCode is the same registry DHCPv4's StatusCode option draws
// from; DHCPv6 carries it with a 16-bit wire width.
type StatusCode = dhcpv4.StatusCode

// MessageType is the DHCPv6 msg-type field (RFC 8415 §7.3).
type MessageType uint8

const (
	MessageTypeSolicit            MessageType = 1
	MessageTypeAdvertise          MessageType = 2
	MessageTypeRequest            MessageType = 3
	MessageTypeConfirm            MessageType = 4
	MessageTypeRenew              MessageType = 5
	MessageTypeRebind             MessageType = 6
	MessageTypeReply              MessageType = 7
	MessageTypeRelease            MessageType = 8
	MessageTypeDecline            MessageType = 9
	MessageTypeReconfigure        MessageType = 10
	MessageTypeInformationRequest MessageType = 11
	MessageTypeRelayForward       MessageType = 12
	MessageTypeRelayReply         MessageType = 13
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeSolicit:
		return "Solicit"
	case MessageTypeAdvertise:
		return "Advertise"
	case MessageTypeRequest:
		return "Request"
	case MessageTypeConfirm:
		return "Confirm"
	case MessageTypeRenew:
		return "Renew"
	case MessageTypeRebind:
		return "Rebind"
	case MessageTypeReply:
		return "Reply"
	case MessageTypeRelease:
		return "Release"
	case MessageTypeDecline:
		return "Decline"
	case MessageTypeReconfigure:
		return "Reconfigure"
	case MessageTypeInformationRequest:
		return "InformationRequest"
	case MessageTypeRelayForward:
		return "RelayForward"
	case MessageTypeRelayReply:
		return "RelayReply"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(m))
	}
}

// OptionCode is the 16-bit DHCPv6 option code.
type OptionCode uint16

const (
	OptionClientIdentifier    OptionCode = 1
	OptionServerIdentifier    OptionCode = 2
	OptionIANA                OptionCode = 3
	OptionIATA                OptionCode = 4
	OptionIAAddress           OptionCode = 5
	OptionOptionRequest       OptionCode = 6
	OptionPreference          OptionCode = 7
	OptionElapsedTime         OptionCode = 8
	OptionRelayMessage        OptionCode = 9
	OptionAuthentication      OptionCode = 11
	OptionServerUnicast       OptionCode = 12
	OptionStatusCode          OptionCode = 13
	OptionRapidCommit         OptionCode = 14
	OptionUserClass           OptionCode = 15
	OptionVendorClass         OptionCode = 16
	OptionInterfaceID         OptionCode = 18
	OptionDNSRecursiveServer  OptionCode = 23
	OptionDomainSearchList    OptionCode = 24
	OptionIAPD                OptionCode = 25
	OptionIAPrefix            OptionCode = 26
	OptionInformationRefresh  OptionCode = 32
	OptionSolMaxRT            OptionCode = 82
	OptionInfMaxRT            OptionCode = 83
)

func (c OptionCode) String() string {
	if name, ok := optionCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("OptionCode(%d)", uint16(c))
}

var optionCodeNames = map[OptionCode]string{
	OptionClientIdentifier:   "ClientIdentifier",
	OptionServerIdentifier:   "ServerIdentifier",
	OptionIANA:               "IA_NA",
	OptionIATA:               "IA_TA",
	OptionIAAddress:          "IAADDR",
	OptionOptionRequest:      "OptionRequest",
	OptionPreference:         "Preference",
	OptionElapsedTime:        "ElapsedTime",
	OptionRelayMessage:       "RelayMessage",
	OptionAuthentication:     "Authentication",
	OptionServerUnicast:      "ServerUnicast",
	OptionStatusCode:         "StatusCode",
	OptionRapidCommit:        "RapidCommit",
	OptionUserClass:          "UserClass",
	OptionVendorClass:        "VendorClass",
	OptionInterfaceID:        "InterfaceID",
	OptionDNSRecursiveServer: "DNSRecursiveNameServer",
	OptionDomainSearchList:   "DomainSearchList",
	OptionIAPD:               "IA_PD",
	OptionIAPrefix:           "IAPrefix",
	OptionInformationRefresh: "InformationRefreshTime",
	OptionSolMaxRT:           "SOL_MAX_RT",
	OptionInfMaxRT:           "INF_MAX_RT",
}

// DuidType is the 16-bit DUID type tag (RFC 8415 §11.1).
type DuidType uint16

const (
	DuidLinkLayerPlusTime DuidType = 1
	DuidEnterpriseNumber  DuidType = 2
	DuidLinkLayer         DuidType = 3
	DuidUniqueIdentifier  DuidType = 4
)

func (d DuidType) String() string {
	switch d {
	case DuidLinkLayerPlusTime:
		return "LinkLayerPlusTime"
	case DuidEnterpriseNumber:
		return "EnterpriseNumber"
	case DuidLinkLayer:
		return "LinkLayer"
	case DuidUniqueIdentifier:
		return "UniqueIdentifier"
	default:
		return fmt.Sprintf("DuidType(%d)", uint16(d))
	}
}
