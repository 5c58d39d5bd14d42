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
	"fmt"
	"net"
	"os"
	"runtime"
	"syscall"

	"github.com/vishvananda/netns"
)

// open creates the broadcast UDP socket the exchange runs over:
// SO_REUSEADDR + SO_BROADCAST, bound to 0.0.0.0:68, optionally pinned
// to a device and created inside a foreign network namespace.
func (c *Client) open() (net.PacketConn, error) {
	fd, err := c.socket(syscall.AF_INET, syscall.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("client: creating socket: %w", err)
	}

	// Go's network poller expects non-blocking file descriptors.
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("client: setting non-blocking: %w", err)
	}
	if c.Interface != "" {
		if err := syscall.SetsockoptString(fd, syscall.SOL_SOCKET, syscall.SO_BINDTODEVICE, c.Interface); err != nil {
			syscall.Close(fd)
			return nil, fmt.Errorf("client: setting SO_BINDTODEVICE to %s: %w", c.Interface, err)
		}
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("client: setting SO_REUSEADDR: %w", err)
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("client: setting SO_BROADCAST: %w", err)
	}

	var sockaddr syscall.SockaddrInet4
	sockaddr.Port = clientPort
	copy(sockaddr.Addr[:], net.IPv4zero.To4())
	if err := syscall.Bind(fd, &sockaddr); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("client: binding to 0.0.0.0:%d: %w", clientPort, err)
	}

	file := os.NewFile(uintptr(fd), "dhcp-client-socket")
	conn, err := net.FilePacketConn(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("client: creating PacketConn: %w", err)
	}
	return conn, nil
}

// socket creates a socket of the given domain, type and protocol (the
// client asks for a UDP datagram socket), inside the configured network namespace
// when one is set.
// ref: https://lore.kernel.org/patchwork/patch/217025/
func (c *Client) socket(domain, typ, proto int) (int, error) {
	if c.NetNSPath == "" {
		return syscall.Socket(domain, typ, proto)
	}

	// lock the thread so we don't switch namespaces
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	origin, err := netns.Get()
	if err != nil {
		return -1, err
	}
	target, err := netns.GetFromPath(c.NetNSPath)
	if err != nil {
		origin.Close()
		return -1, fmt.Errorf("could not get network namespace from path %s: %w", c.NetNSPath, err)
	}
	defer target.Close()
	defer func() {
		netns.Set(origin)
		origin.Close()
	}()

	if err := netns.Set(target); err != nil {
		return -1, err
	}
	return syscall.Socket(domain, typ, proto)
}
