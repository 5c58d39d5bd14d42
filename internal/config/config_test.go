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

package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "minimal",
			yaml: `
serverIdentifier: 192.168.0.1
network: 192.168.0.0/24
`,
		},
		{
			name: "full",
			yaml: `
serverIdentifier: 192.168.0.1
network: 192.168.0.0/24
gateway: 192.168.0.1
dns: [1.1.1.1, 8.8.8.8]
dnsSearch: [corp.example.com]
leaseDuration: 1h
static:
  - hardwareAddr: aa:bb:cc:dd:ee:ff
    ip: 192.168.0.10
    leaseDuration: 24h
pxe:
  tftpServer: 192.168.0.5
  primary: true
  filename: pxelinux.0
  arches:
    7: efi
  vendors:
    efi: "PXEClient:Arch:00007"
  configs:
    efi:
      filename: syslinux.efi
cache:
  expiration: 30s
  maxSize: 128
admission: 'message_type != "Inform"'
`,
		},
		{
			name:    "missing server identifier",
			yaml:    `network: 192.168.0.0/24`,
			wantErr: "serverIdentifier is required",
		},
		{
			name: "bad network",
			yaml: `
serverIdentifier: 192.168.0.1
network: not-a-cidr
`,
			wantErr: "invalid network CIDR",
		},
		{
			name: "static outside network",
			yaml: `
serverIdentifier: 192.168.0.1
network: 192.168.0.0/24
static:
  - hardwareAddr: aa:bb:cc:dd:ee:ff
    ip: 10.0.0.10
`,
			wantErr: "is not in network",
		},
		{
			name: "bad static mac",
			yaml: `
serverIdentifier: 192.168.0.1
network: 192.168.0.0/24
static:
  - hardwareAddr: zz:bb:cc:dd:ee:ff
    ip: 192.168.0.10
`,
			wantErr: "invalid hardwareAddr",
		},
		{
			name: "pxe arch references unknown config",
			yaml: `
serverIdentifier: 192.168.0.1
network: 192.168.0.0/24
pxe:
  tftpServer: 192.168.0.5
  arches:
    7: missing
`,
			wantErr: "unknown config",
		},
		{
			name: "bad lease duration",
			yaml: `
serverIdentifier: 192.168.0.1
network: 192.168.0.0/24
leaseDuration: one hour
`,
			wantErr: "invalid leaseDuration",
		},
		{
			name: "unknown field",
			yaml: `
serverIdentifier: 192.168.0.1
network: 192.168.0.0/24
bogusField: true
`,
			wantErr: "unmarshal",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseFields(t *testing.T) {
	cfg, err := Parse([]byte(`
serverIdentifier: 192.168.0.1
network: 192.168.0.0/24
gateway: 192.168.0.1
dns: [1.1.1.1]
leaseDuration: 30m
static:
  - hardwareAddr: aa:bb:cc:dd:ee:ff
    ip: 192.168.0.10
cache:
  expiration: 30s
  maxSize: 64
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &Config{
		ServerIdentifier: "192.168.0.1",
		Network:          "192.168.0.0/24",
		Gateway:          "192.168.0.1",
		DNS:              []string{"1.1.1.1"},
		LeaseDuration:    "30m",
		Static: []StaticConfig{
			{HardwareAddr: "aa:bb:cc:dd:ee:ff", IP: "192.168.0.10"},
		},
		Cache: &CacheConfig{Expiration: "30s", MaxSize: 64},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("parsed config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateAccumulates(t *testing.T) {
	cfg := &Config{
		ServerIdentifier: "bogus",
		Network:          "also-bogus",
		Gateway:          "still-bogus",
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"serverIdentifier", "network CIDR", "gateway"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q missing %q", err, want)
		}
	}
}
