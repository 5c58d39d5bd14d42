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

// Package config loads and validates the server's YAML configuration:
// the lease pool, static reservations, the PXE and cache overlays, and
// the optional CEL admission filter.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// Config is the on-disk shape of the server configuration. Addresses
// and durations are kept as strings here and converted when cmd/dhcpd
// builds the server, once validation has passed.
type Config struct {
	// ServerIdentifier is the address advertised in every reply's
	// ServerIdentifier option and used to fill a zero siaddr.
	ServerIdentifier string `json:"serverIdentifier"`

	// Network is the dynamic pool in CIDR form, e.g. "192.168.0.0/24".
	Network string `json:"network"`

	// Gateway is the default router handed to clients. It is excluded
	// from the dynamic pool.
	Gateway string `json:"gateway,omitempty"`

	// DNS lists the default name servers handed to clients; each is
	// excluded from the dynamic pool.
	DNS []string `json:"dns,omitempty"`

	// DNSSearch is the default DNS search list.
	DNSSearch []string `json:"dnsSearch,omitempty"`

	// LeaseDuration is the default lease, in Go duration form ("1h").
	LeaseDuration string `json:"leaseDuration,omitempty"`

	// Static lists permanent per-client reservations.
	Static []StaticConfig `json:"static,omitempty"`

	// PXE optionally enables the PXE boot-service overlay.
	PXE *PXEConfig `json:"pxe,omitempty"`

	// Cache optionally enables the answer-cache overlay.
	Cache *CacheConfig `json:"cache,omitempty"`

	// Admission is an optional CEL expression evaluated against each
	// decoded request before it reaches the backend chain.
	Admission string `json:"admission,omitempty"`
}

// StaticConfig is one static reservation. Any omitted field falls back
// to the server-wide default.
type StaticConfig struct {
	HardwareAddr  string   `json:"hardwareAddr"`
	IP            string   `json:"ip"`
	Gateway       string   `json:"gateway,omitempty"`
	DNS           []string `json:"dns,omitempty"`
	DNSSearch     []string `json:"dnsSearch,omitempty"`
	LeaseDuration string   `json:"leaseDuration,omitempty"`
}

// PXEConfig is the primary boot-service configuration plus dynamic
// per-architecture and per-vendor overrides.
type PXEConfig struct {
	TFTPServer string `json:"tftpServer"`
	Primary    bool   `json:"primary,omitempty"`
	PathPrefix string `json:"pathPrefix,omitempty"`
	Hostname   string `json:"hostname,omitempty"`
	Filename   string `json:"filename,omitempty"`

	// Arches maps an RFC 4578 architecture code to a named config in
	// Configs.
	Arches map[uint16]string `json:"arches,omitempty"`

	// Vendors maps a named config in Configs to a substring matched
	// against the client's vendor-class identifier.
	Vendors map[string]string `json:"vendors,omitempty"`

	Configs map[string]*PXEOverrideConfig `json:"configs,omitempty"`
}

// PXEOverrideConfig is a dynamic override; non-empty fields win over
// the primary config.
type PXEOverrideConfig struct {
	TFTPServer string `json:"tftpServer,omitempty"`
	Hostname   string `json:"hostname,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// CacheConfig bounds the answer-cache overlay.
type CacheConfig struct {
	Expiration string   `json:"expiration,omitempty"`
	MaxSize    int      `json:"maxSize,omitempty"`
	Ignore     []string `json:"ignore,omitempty"`
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates raw YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal YAML data: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate accumulates every problem in cfg rather than stopping at the
// first, so an operator sees the full list at once.
func Validate(cfg *Config) error {
	var errorsList []error

	if cfg.ServerIdentifier == "" {
		errorsList = append(errorsList, fmt.Errorf("serverIdentifier is required"))
	} else if ip := net.ParseIP(cfg.ServerIdentifier); ip == nil || ip.To4() == nil {
		errorsList = append(errorsList, fmt.Errorf("invalid serverIdentifier %q", cfg.ServerIdentifier))
	}

	var network *net.IPNet
	if cfg.Network == "" {
		errorsList = append(errorsList, fmt.Errorf("network is required"))
	} else {
		var err error
		if _, network, err = net.ParseCIDR(cfg.Network); err != nil {
			errorsList = append(errorsList, fmt.Errorf("invalid network CIDR %q", cfg.Network))
		}
	}

	if cfg.Gateway != "" {
		if ip := net.ParseIP(cfg.Gateway); ip == nil || ip.To4() == nil {
			errorsList = append(errorsList, fmt.Errorf("invalid gateway IP %q", cfg.Gateway))
		}
	}
	for _, s := range cfg.DNS {
		if ip := net.ParseIP(s); ip == nil || ip.To4() == nil {
			errorsList = append(errorsList, fmt.Errorf("invalid dns IP %q", s))
		}
	}
	if cfg.LeaseDuration != "" {
		if d, err := time.ParseDuration(cfg.LeaseDuration); err != nil {
			errorsList = append(errorsList, fmt.Errorf("invalid leaseDuration %q", cfg.LeaseDuration))
		} else if d <= 0 {
			errorsList = append(errorsList, fmt.Errorf("leaseDuration must be positive, got %q", cfg.LeaseDuration))
		}
	}

	for i, st := range cfg.Static {
		if _, err := net.ParseMAC(st.HardwareAddr); err != nil {
			errorsList = append(errorsList, fmt.Errorf("static %d: invalid hardwareAddr %q", i, st.HardwareAddr))
		}
		ip := net.ParseIP(st.IP)
		if ip == nil || ip.To4() == nil {
			errorsList = append(errorsList, fmt.Errorf("static %d: invalid ip %q", i, st.IP))
		} else if network != nil && !network.Contains(ip) {
			errorsList = append(errorsList, fmt.Errorf("static %d: ip %s is not in network %s", i, st.IP, cfg.Network))
		}
		if st.Gateway != "" && net.ParseIP(st.Gateway) == nil {
			errorsList = append(errorsList, fmt.Errorf("static %d: invalid gateway IP %q", i, st.Gateway))
		}
		for _, s := range st.DNS {
			if net.ParseIP(s) == nil {
				errorsList = append(errorsList, fmt.Errorf("static %d: invalid dns IP %q", i, s))
			}
		}
		if st.LeaseDuration != "" {
			if _, err := time.ParseDuration(st.LeaseDuration); err != nil {
				errorsList = append(errorsList, fmt.Errorf("static %d: invalid leaseDuration %q", i, st.LeaseDuration))
			}
		}
	}

	if cfg.PXE != nil {
		if cfg.PXE.TFTPServer == "" {
			errorsList = append(errorsList, fmt.Errorf("pxe: tftpServer is required"))
		} else if ip := net.ParseIP(cfg.PXE.TFTPServer); ip == nil || ip.To4() == nil {
			errorsList = append(errorsList, fmt.Errorf("pxe: invalid tftpServer IP %q", cfg.PXE.TFTPServer))
		}
		for arch, name := range cfg.PXE.Arches {
			if _, ok := cfg.PXE.Configs[name]; !ok {
				errorsList = append(errorsList, fmt.Errorf("pxe: arch %d references unknown config %q", arch, name))
			}
		}
		for name := range cfg.PXE.Vendors {
			if _, ok := cfg.PXE.Configs[name]; !ok {
				errorsList = append(errorsList, fmt.Errorf("pxe: vendor match references unknown config %q", name))
			}
		}
		for name, oc := range cfg.PXE.Configs {
			if oc.TFTPServer != "" && net.ParseIP(oc.TFTPServer) == nil {
				errorsList = append(errorsList, fmt.Errorf("pxe: config %q: invalid tftpServer IP %q", name, oc.TFTPServer))
			}
		}
	}

	if cfg.Cache != nil {
		if cfg.Cache.Expiration != "" {
			if _, err := time.ParseDuration(cfg.Cache.Expiration); err != nil {
				errorsList = append(errorsList, fmt.Errorf("cache: invalid expiration %q", cfg.Cache.Expiration))
			}
		}
		if cfg.Cache.MaxSize < 0 {
			errorsList = append(errorsList, fmt.Errorf("cache: maxSize must be non-negative, got %d", cfg.Cache.MaxSize))
		}
	}

	return errors.Join(errorsList...)
}
