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

// Package session implements the per-datagram DHCPv4 server state
// machine: decode, dispatch by message type, invoke the backend chain,
// apply server-identifier and Nak policy, and fan the encoded reply out
// to every candidate destination.
package session

import (
	"context"
	"errors"
	"net"

	"github.com/google/cel-go/cel"
	"k8s.io/klog/v2"

	"github.com/google/go-dhcpd/internal/lease"
	"github.com/google/go-dhcpd/internal/metrics"
	"github.com/google/go-dhcpd/internal/policy"
	"github.com/google/go-dhcpd/internal/pxe"
	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

const (
	// clientPort is where every reply is directed, regardless of the
	// source port of the request.
	clientPort = 68

	maxDatagram = 65535
)

var broadcastIP = net.IPv4(255, 255, 255, 255)

// Server handles DHCPv4 datagrams against a backend chain. One logical
// session exists per datagram; the struct itself is shared across the
// handler goroutines and must stay read-only while serving.
type Server struct {
	Backend  lease.Backend
	ServerID net.IP

	// Admission optionally rejects requests before they reach the
	// backend chain. A nil program admits everything.
	Admission cel.Program
}

// Serve reads datagrams from conn until ctx is cancelled or the
// connection fails, handling each on its own goroutine.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	buf := make([]byte, maxDatagram)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		go s.handle(ctx, conn, peer, data)
	}
}

// handle runs one session: RECEIVED → DECODED → DISPATCHED → RESPONDED
// → SENT. Malformed datagrams are dropped without a reply.
func (s *Server) handle(ctx context.Context, conn net.PacketConn, peer net.Addr, data []byte) {
	klog.V(4).Infof("session: received %d bytes from %s", len(data), peer)
	request, err := dhcpv4.Decode(data)
	if err != nil {
		klog.V(2).Infof("session: dropping malformed datagram from %s: %v", peer, err)
		return
	}
	if !policy.Admit(s.Admission, peer, request) {
		klog.V(2).Infof("session: admission filter rejected %s (%s)", request.ClientHwAddr, peer)
		return
	}
	response := s.Process(ctx, peer, request)
	if response == nil {
		klog.Errorf("session: no response for %s from %s", request.ClientHwAddr, peer)
		return
	}
	s.send(conn, peer, request, response)
}

// Process dispatches the request and post-processes the response. It
// never returns nil for a decodable request carrying a message type:
// every error path degrades into a Nak with a StatusCode option.
func (s *Server) Process(ctx context.Context, peer net.Addr, request *dhcpv4.Message) *dhcpv4.Message {
	mtype, hasType := request.MessageType()
	if !hasType {
		klog.V(2).Infof("session: dropping message without DHCPMessageType from %s", peer)
		return nil
	}

	var response *dhcpv4.Message
	var err error
	switch mtype {
	case dhcpv4.MessageTypeDiscover:
		response, err = s.processDiscover(ctx, peer, request)
	case dhcpv4.MessageTypeRequest:
		response, err = s.processRequest(ctx, peer, request)
	case dhcpv4.MessageTypeDecline:
		response, err = s.processDecline(ctx, peer, request)
	case dhcpv4.MessageTypeRelease:
		response, err = s.processRelease(ctx, peer, request)
	case dhcpv4.MessageTypeInform:
		err = dhcpv4.ErrNotAllowed("inform not allowed")
	default:
		err = dhcpv4.ErrUnknownQueryType("unknown message type: %s", mtype)
	}

	if err != nil {
		var dhcpErr *dhcpv4.Error
		if !errors.As(err, &dhcpErr) {
			dhcpErr = dhcpv4.NewError(dhcpv4.StatusUnspecFail, "%v", err)
			klog.Errorf("session: unexpected error handling %s from %s: %v", mtype, request.ClientHwAddr, err)
		}
		metrics.RequestErrorsTotal.WithLabelValues(dhcpErr.Code.String()).Inc()
		klog.V(2).Infof("session: %s from %s failed: %s (%s)", mtype, request.ClientHwAddr, dhcpErr.Message, dhcpErr.Code)
		if response == nil {
			response = request.Reply()
		}
		s.finalize(request, response)
		response.Options.Insert(0, dhcpv4.NewDHCPMessageType(dhcpv4.MessageTypeNak))
		response.Options.Insert(1, dhcpv4.NewStatusCodeOption(dhcpErr.Code, dhcpErr.Message))
		return response
	}
	if response == nil {
		return nil
	}
	s.finalize(request, response)
	return response
}

// finalize applies the post-processing every response gets: reply op,
// echoed transaction identity, a non-zero server address, and the
// server identifier option.
func (s *Server) finalize(request *dhcpv4.Message, response *dhcpv4.Message) {
	response.Op = dhcpv4.OpBootReply
	response.Xid = request.Xid
	response.ClientHwAddr = request.ClientHwAddr
	if response.ServerAddr == nil || response.ServerAddr.IsUnspecified() {
		response.ServerAddr = s.ServerID
	}
	response.Options.SetDefault(1, dhcpv4.NewServerIdentifier(s.ServerID))
}

func (s *Server) processDiscover(ctx context.Context, peer net.Addr, request *dhcpv4.Message) (*dhcpv4.Message, error) {
	answer, err := s.Backend.Discover(ctx, peer, request)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, dhcpv4.ErrNoAddrsAvailable("no address available for %s", request.ClientHwAddr)
	}
	response := s.answerReply(request, answer)
	response.Options.Insert(0, dhcpv4.NewDHCPMessageType(dhcpv4.MessageTypeOffer))
	return response, nil
}

func (s *Server) processRequest(ctx context.Context, peer net.Addr, request *dhcpv4.Message) (*dhcpv4.Message, error) {
	answer, err := s.Backend.Request(ctx, peer, request)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, dhcpv4.ErrNoAddrsAvailable("no address available for %s", request.ClientHwAddr)
	}
	response := s.answerReply(request, answer)
	response.Options.SetDefault(0, dhcpv4.NewDHCPMessageType(dhcpv4.MessageTypeAck))

	// A client requesting an address we did not assign, or carrying a
	// broadcast address that disagrees with the offered netmask, gets
	// a Nak instead of an Ack.
	reqAddr := request.RequestedAddress()
	reqCast := request.BroadcastAddress()
	if (reqAddr != nil && !reqAddr.IsUnspecified() && !reqAddr.Equal(response.YourAddr)) ||
		(reqCast != nil && !reqCast.Equal(response.SubnetMask())) {
		response.Options.Insert(0, dhcpv4.NewDHCPMessageType(dhcpv4.MessageTypeNak))
	}
	return response, nil
}

func (s *Server) processDecline(ctx context.Context, peer net.Addr, request *dhcpv4.Message) (*dhcpv4.Message, error) {
	answer, err := s.Backend.Decline(ctx, peer, request)
	if err != nil {
		return nil, err
	}
	response := s.maybeAnswerReply(request, answer)
	response.Options.SetDefault(0, dhcpv4.NewDHCPMessageType(dhcpv4.MessageTypeNak))
	return response, nil
}

func (s *Server) processRelease(ctx context.Context, peer net.Addr, request *dhcpv4.Message) (*dhcpv4.Message, error) {
	answer, err := s.Backend.Release(ctx, peer, request)
	if err != nil {
		return nil, err
	}
	response := s.maybeAnswerReply(request, answer)
	response.Options.SetDefault(0, dhcpv4.NewDHCPMessageType(dhcpv4.MessageTypeAck))
	return response, nil
}

func (s *Server) maybeAnswerReply(request *dhcpv4.Message, answer *lease.Answer) *dhcpv4.Message {
	if answer == nil {
		return request.Reply()
	}
	return s.answerReply(request, answer)
}

// answerReply turns a backend Answer into a reply message: the assigned
// interface and its supporting options, then any PXE boot-service data
// on top.
func (s *Server) answerReply(request *dhcpv4.Message, answer *lease.Answer) *dhcpv4.Message {
	response := request.Reply()
	if assign := answer.Assign; assign != nil {
		response.YourAddr = assign.IP
		response.Options.Append(dhcpv4.NewSubnetMask(assign.Netmask))
		if assign.Gateway != nil {
			response.Options.Append(dhcpv4.NewRouter(assign.Gateway))
		}
		if len(assign.DNS) > 0 {
			response.Options.Append(dhcpv4.NewDomainNameServer(assign.DNS...))
		}
		if len(assign.DNSSearch) > 0 {
			response.Options.Append(dhcpv4.NewDNSDomainSearchList(assign.DNSSearch...))
		}
		response.Options.Append(dhcpv4.NewIPAddressLeaseTime(assign.Lease))
	}
	pxe.Apply(response, answer.PXE)
	return response
}

// send encodes the response once and writes it to every non-zero
// candidate destination: the request's gateway, the request's client
// address, the socket-level peer, then the limited broadcast address.
func (s *Server) send(conn net.PacketConn, peer net.Addr, request *dhcpv4.Message, response *dhcpv4.Message) {
	data, err := response.Encode()
	if err != nil {
		klog.Errorf("session: encoding response for %s: %v", request.ClientHwAddr, err)
		return
	}
	if mtype, ok := response.MessageType(); ok {
		metrics.ResponsesTotal.WithLabelValues(mtype.String()).Inc()
	}
	for _, dest := range Destinations(request, peer) {
		if _, err := conn.WriteTo(data, dest); err != nil {
			klog.Errorf("session: sending %d bytes to %s: %v", len(data), dest, err)
			continue
		}
		klog.V(4).Infof("session: sent %d bytes to %s", len(data), dest)
	}
}

// Destinations computes the ordered, de-zeroed candidate list a reply
// is sent to. The peer address is included only when it carries a
// usable IPv4 address.
func Destinations(request *dhcpv4.Message, peer net.Addr) []*net.UDPAddr {
	var candidates []net.IP
	candidates = append(candidates, request.GatewayAddr, request.ClientAddr)
	if udp, ok := peer.(*net.UDPAddr); ok {
		candidates = append(candidates, udp.IP)
	}
	candidates = append(candidates, broadcastIP)

	var dests []*net.UDPAddr
	seen := make(map[string]struct{})
	for _, ip := range candidates {
		if ip == nil || ip.To4() == nil || ip.IsUnspecified() {
			continue
		}
		key := ip.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		dests = append(dests, &net.UDPAddr{IP: ip, Port: clientPort})
	}
	return dests
}
