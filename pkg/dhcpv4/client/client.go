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

// Package client implements a minimal DHCPv4 client: one
// DISCOVER→OFFER→REQUEST→ACK exchange over a broadcast UDP socket,
// optionally bound to a named interface or a foreign network namespace.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/vishvananda/netlink"
	"k8s.io/klog/v2"

	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

const (
	serverPort = 67
	clientPort = 68

	maxDatagram = 1500
)

// Assignment is the lease a server acknowledged: the address, its
// netmask, and the supporting options from the Ack. SubnetMask, Router
// and IPAddressLeaseTime are required by the protocol exchange; DNS and
// the search list are optional.
type Assignment struct {
	Message   *dhcpv4.Message
	IP        net.IP
	Netmask   net.IP
	Routers   []net.IP
	DNS       []net.IP
	DNSSearch []string
	Lease     time.Duration
}

// Client drives the lease-acquisition exchange. The zero value
// broadcasts on the default interface with a 10 second receive timeout.
type Client struct {
	// Timeout bounds each receive wait.
	Timeout time.Duration

	// Interface, when set, binds the socket to the named device
	// (SO_BINDTODEVICE) so the exchange runs on that link.
	Interface string

	// NetNSPath, when set, creates the socket inside the network
	// namespace mounted at that path (e.g. /proc/<pid>/ns/net).
	NetNSPath string
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 10 * time.Second
}

// BindInterface brings the client's configured interface up if it is
// not already, so the exchange has a usable link.
func (c *Client) BindInterface() error {
	if c.Interface == "" {
		return nil
	}
	link, err := netlink.LinkByName(c.Interface)
	if err != nil {
		return fmt.Errorf("client: looking up interface %s: %w", c.Interface, err)
	}
	if link.Attrs().OperState != netlink.OperUp {
		if err := netlink.LinkSetUp(link); err != nil {
			return fmt.Errorf("client: setting interface %s up: %w", c.Interface, err)
		}
	}
	return nil
}

// RequestAssignment runs the full DISCOVER→OFFER→REQUEST→ACK exchange
// for mac and returns the acknowledged assignment.
func (c *Client) RequestAssignment(mac net.HardwareAddr) (*Assignment, error) {
	conn, err := c.open()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	xid := dhcpv4.NewXid()

	klog.V(4).Infof("client: sending DISCOVER for %s (xid %#x)", mac, xid)
	offer, err := c.exchange(conn, dhcpv4.Discover(xid, mac, nil))
	if err != nil {
		return nil, fmt.Errorf("client: discover: %w", err)
	}
	if mtype, _ := offer.MessageType(); mtype != dhcpv4.MessageTypeOffer {
		return nil, fmt.Errorf("client: expected an Offer, got %s", mtype)
	}
	if offer.YourAddr == nil || offer.YourAddr.IsUnspecified() {
		return nil, fmt.Errorf("client: offer carries no address")
	}
	klog.V(4).Infof("client: offered %s (xid %#x)", offer.YourAddr, xid)

	request := dhcpv4.Request(xid, mac, offer.YourAddr)
	if sid := offer.ServerIdentifier(); sid != nil {
		request.Options.Append(dhcpv4.NewServerIdentifier(sid))
	}
	ack, err := c.exchange(conn, request)
	if err != nil {
		return nil, fmt.Errorf("client: request: %w", err)
	}
	if mtype, _ := ack.MessageType(); mtype != dhcpv4.MessageTypeAck {
		return nil, fmt.Errorf("client: expected an Ack, got %s", mtype)
	}
	assign, err := assignmentFromAck(ack)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("client: acquired %s/%s for %s (lease %s)", assign.IP, assign.Netmask, mac, assign.Lease)
	return assign, nil
}

// exchange broadcasts request and waits for the matching reply: same
// transaction id, BootReply op. Unrelated datagrams are skipped until
// the receive deadline passes.
func (c *Client) exchange(conn net.PacketConn, request *dhcpv4.Message) (*dhcpv4.Message, error) {
	data, err := request.Encode()
	if err != nil {
		return nil, err
	}
	dest := &net.UDPAddr{IP: net.IPv4bcast, Port: serverPort}
	if _, err := conn.WriteTo(data, dest); err != nil {
		return nil, fmt.Errorf("sending to %s: %w", dest, err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(c.timeout())); err != nil {
		return nil, err
	}
	buf := make([]byte, maxDatagram)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return nil, err
		}
		response, err := dhcpv4.Decode(buf[:n])
		if err != nil {
			klog.V(4).Infof("client: skipping undecodable datagram from %s: %v", peer, err)
			continue
		}
		if response.Xid != request.Xid || response.Op != dhcpv4.OpBootReply {
			klog.V(4).Infof("client: skipping unrelated reply from %s (xid %#x)", peer, response.Xid)
			continue
		}
		return response, nil
	}
}

// assignmentFromAck extracts the lease data the exchange requires from
// the Ack; a missing subnet mask, router, or lease time fails the
// acquisition.
func assignmentFromAck(ack *dhcpv4.Message) (*Assignment, error) {
	if ack.YourAddr == nil || ack.YourAddr.IsUnspecified() {
		return nil, fmt.Errorf("client: ack carries no address")
	}
	mask := ack.SubnetMask()
	if mask == nil {
		return nil, fmt.Errorf("client: ack carries no subnet mask")
	}
	routers, ok := dhcpv4.GetAs[*dhcpv4.Router](ack.Options, dhcpv4.OptionRouter)
	if !ok || len(routers.IPs) == 0 {
		return nil, fmt.Errorf("client: ack carries no router")
	}
	leaseTime, ok := dhcpv4.GetAs[*dhcpv4.IPAddressLeaseTime](ack.Options, dhcpv4.OptionIPAddressLeaseTime)
	if !ok {
		return nil, fmt.Errorf("client: ack carries no lease time")
	}
	assign := &Assignment{
		Message: ack,
		IP:      ack.YourAddr,
		Netmask: mask,
		Routers: routers.IPs,
		Lease:   leaseTime.Value,
	}
	if dns, ok := dhcpv4.GetAs[*dhcpv4.DomainNameServer](ack.Options, dhcpv4.OptionDomainNameServer); ok {
		assign.DNS = dns.IPs
	}
	if search, ok := dhcpv4.GetAs[*dhcpv4.DNSDomainSearchList](ack.Options, dhcpv4.OptionDNSDomainSearchList); ok {
		assign.DNSSearch = search.Domains
	}
	return assign, nil
}
