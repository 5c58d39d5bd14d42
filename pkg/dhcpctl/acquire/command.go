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

// Package acquire implements the dhcpctl subcommand that runs the
// DISCOVER→OFFER→REQUEST→ACK exchange and prints the resulting lease.
package acquire

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/google/go-dhcpd/pkg/dhcpv4/client"
)

var (
	ifName    string
	macAddr   string
	netnsPath string
	timeout   time.Duration
)

func init() {
	AcquireCmd.Flags().StringVar(&ifName, "interface", "", "Network interface to run the exchange on")
	AcquireCmd.Flags().StringVar(&macAddr, "mac", "", "Hardware address to request a lease for; defaults to the interface's address")
	AcquireCmd.Flags().StringVar(&netnsPath, "netns", "", "Path to a network namespace to run the exchange in (e.g. /proc/<pid>/ns/net)")
	AcquireCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for each server reply")
}

var AcquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Acquire a DHCPv4 lease",
	Long:  `Runs a full DISCOVER/OFFER/REQUEST/ACK exchange against the local broadcast domain and prints the acknowledged lease.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mac, err := resolveMAC()
		if err != nil {
			return err
		}
		c := &client.Client{
			Timeout:   timeout,
			Interface: ifName,
			NetNSPath: netnsPath,
		}
		if err := c.BindInterface(); err != nil {
			return err
		}
		assign, err := c.RequestAssignment(mac)
		if err != nil {
			return err
		}

		mask := net.IPMask(assign.Netmask.To4())
		ones, _ := mask.Size()
		fmt.Printf("address: %s/%d\n", assign.IP, ones)
		fmt.Printf("lease:   %s\n", assign.Lease)
		fmt.Printf("routers: %s\n", joinIPs(assign.Routers))
		if len(assign.DNS) > 0 {
			fmt.Printf("dns:     %s\n", joinIPs(assign.DNS))
		}
		if len(assign.DNSSearch) > 0 {
			fmt.Printf("search:  %v\n", assign.DNSSearch)
		}
		return nil
	},
}

// resolveMAC picks the hardware address for the exchange: the --mac
// flag when given, otherwise the bound interface's address.
func resolveMAC() (net.HardwareAddr, error) {
	if macAddr != "" {
		mac, err := net.ParseMAC(macAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid --mac %q: %w", macAddr, err)
		}
		return mac, nil
	}
	if ifName == "" {
		return nil, fmt.Errorf("one of --mac or --interface is required")
	}
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("looking up interface %s: %w", ifName, err)
	}
	if len(iface.HardwareAddr) == 0 {
		return nil, fmt.Errorf("interface %s has no hardware address; pass --mac", ifName)
	}
	return iface.HardwareAddr, nil
}

func joinIPs(ips []net.IP) string {
	out := ""
	for i, ip := range ips {
		if i > 0 {
			out += ", "
		}
		out += ip.String()
	}
	return out
}
