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

// Package pxe overlays PXE/TFTP boot-service options onto a wrapped
// lease.Backend's answers. Grounded on
// _examples/original_source/pydhcp/v4/server/backend/pxe.py and the
// activation-gate pattern in
// _examples/hans-d-coredhcp/plugins/pxe/pxe.go.
package pxe

import (
	"context"
	"net"
	"strings"

	"k8s.io/klog/v2"

	"github.com/google/go-dhcpd/internal/lease"
	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

// pxeOptions is the set of requested option codes that signal a PXE
// client, per pydhcp's PXE_OPTIONS.
var pxeOptions = map[dhcpv4.OptionCode]struct{}{
	dhcpv4.OptionTFTPServerName:      {},
	dhcpv4.OptionTFTPServerAddress:   {},
	dhcpv4.OptionTFTPServerIPAddress: {},
	dhcpv4.OptionBootfileName:        {},
	dhcpv4.OptionPXELinuxPathPrefix:  {},
}

// Config is a PXE boot configuration: a primary TFTP server plus an
// optional per-architecture and per-vendor-class override set.
type Config struct {
	IP       net.IP
	Primary  bool
	Prefix   string
	Hostname string
	Filename string
	Dynamic  DynamicConfig
}

// DynamicConfig selects an override Config by client architecture first,
// then by a vendor-class substring match — the precedence order
// get_pxe_config implements in pxe.py.
type DynamicConfig struct {
	Arches  map[dhcpv4.Arch]*Config
	Vendors map[string]string // vendor id -> substring to match against the vendor class
	Configs map[string]*Config
}

// Backend wraps a lease.Backend, injecting PXE options into its
// answers when the client's requested options indicate it's a PXE
// client.
type Backend struct {
	Backend lease.Backend
	Config  Config
}

func (b *Backend) Discover(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return b.pxe(ctx, peer, req, b.Backend.Discover)
}

func (b *Backend) Request(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return b.pxe(ctx, peer, req, b.Backend.Request)
}

// Decline and Release never carry PXE semantics; pass straight through.
func (b *Backend) Decline(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return b.Backend.Decline(ctx, peer, req)
}

func (b *Backend) Release(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error) {
	return b.Backend.Release(ctx, peer, req)
}

type delegate func(ctx context.Context, peer net.Addr, req *dhcpv4.Message) (*lease.Answer, error)

func (b *Backend) pxe(ctx context.Context, peer net.Addr, req *dhcpv4.Message, next delegate) (*lease.Answer, error) {
	answer, err := next(ctx, peer, req)
	if err != nil {
		return nil, err
	}
	requested := req.RequestedOptions()
	activated := false
	for _, code := range requested {
		if _, ok := pxeOptions[code]; ok {
			activated = true
			break
		}
	}
	if !activated {
		return answer, nil
	}

	cfg := b.selectConfig(req)
	info := &lease.PXEInfo{
		ServerIP:   cfg.IP,
		ServerName: cfg.Hostname,
		BootFile:   cfg.Filename,
		PathPrefix: cfg.Prefix,
		Primary:    cfg.Primary,
	}
	if answer == nil {
		klog.V(3).Infof("pxe: synthesizing answer for %s (no underlying assignment)", req.ClientHwAddr)
		return &lease.Answer{PXE: info, Source: "PXE"}, nil
	}
	answer.PXE = info
	answer.Source = "PXE"
	return answer, nil
}

// selectConfig implements pxe.py's get_pxe_config precedence: an
// architecture match is tried first; only if that yields nothing does a
// vendor-class substring match apply. In the architecture pass the first
// of the client's listed architectures that has an override wins; in the
// vendor pass, which of several matching substrings wins is not defined.
func (b *Backend) selectConfig(req *dhcpv4.Message) Config {
	cfg := b.Config
	var override *Config

	if arches, ok := dhcpv4.GetAs[*dhcpv4.ClientSystemArchitectureType](req.Options, dhcpv4.OptionClientSystemArchitectureType); ok && len(b.Config.Dynamic.Arches) > 0 {
		for _, arch := range arches.Arches {
			if c, ok := b.Config.Dynamic.Arches[arch]; ok {
				override = c
				break
			}
		}
	}

	if override == nil {
		if vendor, ok := req.ClassIdentifier(); ok && vendor != "" && (len(b.Config.Dynamic.Vendors) > 0 || len(b.Config.Dynamic.Configs) > 0) {
			for vendorID, match := range b.Config.Dynamic.Vendors {
				if strings.Contains(vendor, match) {
					if c, ok := b.Config.Dynamic.Configs[vendorID]; ok {
						override = c
						break
					}
				}
			}
		}
	}

	if override != nil {
		if override.IP != nil {
			cfg.IP = override.IP
		}
		if override.Hostname != "" {
			cfg.Hostname = override.Hostname
		}
		if override.Filename != "" {
			cfg.Filename = override.Filename
		}
	}
	return cfg
}

// Apply fills a reply message's PXE-related fields and options from
// info, following pxe.py's pxe() response-construction order.
func Apply(resp *dhcpv4.Message, info *lease.PXEInfo) {
	if info == nil || info.ServerIP == nil {
		return
	}
	resp.Options.Append(dhcpv4.NewTFTPServerIPAddress(info.ServerIP))
	resp.ServerAddr = info.ServerIP
	if info.Primary {
		if info.BootFile != "" {
			resp.BootFile = info.BootFile
		}
		if info.ServerName != "" {
			resp.ServerName = info.ServerName
		}
	}
	if info.PathPrefix != "" {
		resp.Options.Append(dhcpv4.NewPXELinuxPathPrefix(info.PathPrefix))
	}
	if info.ServerName != "" {
		resp.Options.Append(dhcpv4.NewTFTPServerName(info.ServerName))
	}
	if info.BootFile != "" {
		// NUL-terminated per spec.md's PXE option note.
		resp.Options.Append(dhcpv4.NewBootfileName(info.BootFile + "\x00"))
	}
}
