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

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/google/go-dhcpd/internal/cache"
	"github.com/google/go-dhcpd/internal/config"
	"github.com/google/go-dhcpd/internal/lease"
	"github.com/google/go-dhcpd/internal/policy"
	"github.com/google/go-dhcpd/internal/pxe"
	"github.com/google/go-dhcpd/internal/session"
	"github.com/google/go-dhcpd/pkg/dhcpv4"
)

var (
	configPath    string
	bindAddress   string
	listenAddress string

	ready atomic.Bool
)

func init() {
	flag.StringVar(&configPath, "config", "/etc/dhcpd/config.yaml", "Path to the server configuration file")
	flag.StringVar(&bindAddress, "bind-address", ":9177", "The IP address and port for the metrics and healthz server to serve on")
	flag.StringVar(&listenAddress, "listen-address", ":67", "The IP address and port to receive DHCP datagrams on")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: dhcpd [options]\n\n")
		flag.PrintDefaults()
	}
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	printVersion()
	flag.VisitAll(func(f *flag.Flag) {
		klog.Infof("FLAG: --%s=%q", f.Name, f.Value)
	})

	cfg, err := config.Load(configPath)
	if err != nil {
		klog.Fatalf("can not load configuration: %v", err)
	}

	mux := http.NewServeMux()
	// Add healthz handler
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	})
	// Add metrics handler
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(bindAddress, mux)
	}()

	server, err := buildServer(cfg)
	if err != nil {
		klog.Fatalf("can not build server: %v", err)
	}

	conn, err := net.ListenPacket("udp4", listenAddress)
	if err != nil {
		klog.Fatalf("can not listen on %s: %v", listenAddress, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Trap signals for graceful shutdown.
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signalCh
		klog.Infof("Received shutdown signal: %q. Initiating graceful shutdown...", sig)
		cancel()
	}()

	ready.Store(true)
	klog.Infof("serving DHCP on %s", conn.LocalAddr())
	if err := server.Serve(ctx, conn); err != nil {
		klog.Fatalf("server failed: %v", err)
	}
}

// buildServer wires the configured backend chain, outermost overlay
// first: Cache → PXE → Memory.
func buildServer(cfg *config.Config) (*session.Server, error) {
	_, network, err := net.ParseCIDR(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("parsing network %q: %w", cfg.Network, err)
	}
	defaultLease := time.Hour
	if cfg.LeaseDuration != "" {
		if defaultLease, err = time.ParseDuration(cfg.LeaseDuration); err != nil {
			return nil, fmt.Errorf("parsing leaseDuration %q: %w", cfg.LeaseDuration, err)
		}
	}
	memory := lease.NewMemoryBackend(
		network,
		parseIP4(cfg.Gateway),
		parseIPs(cfg.DNS),
		cfg.DNSSearch,
		defaultLease,
	)
	for _, st := range cfg.Static {
		mac, err := net.ParseMAC(st.HardwareAddr)
		if err != nil {
			return nil, fmt.Errorf("parsing static hardwareAddr %q: %w", st.HardwareAddr, err)
		}
		r := lease.Reservation{
			IP:        parseIP4(st.IP),
			Gateway:   parseIP4(st.Gateway),
			DNS:       parseIPs(st.DNS),
			DNSSearch: st.DNSSearch,
		}
		if st.LeaseDuration != "" {
			if r.Lease, err = time.ParseDuration(st.LeaseDuration); err != nil {
				return nil, fmt.Errorf("parsing static leaseDuration %q: %w", st.LeaseDuration, err)
			}
		}
		if err := memory.SetStatic(mac, r); err != nil {
			return nil, err
		}
	}

	var chain lease.Backend = memory
	if cfg.PXE != nil {
		chain = &pxe.Backend{Backend: chain, Config: pxeConfig(cfg.PXE)}
	}
	if cfg.Cache != nil {
		overlay := &cache.Backend{Backend: chain, MaxSize: cfg.Cache.MaxSize}
		if cfg.Cache.Expiration != "" {
			if overlay.Expiration, err = time.ParseDuration(cfg.Cache.Expiration); err != nil {
				return nil, fmt.Errorf("parsing cache expiration %q: %w", cfg.Cache.Expiration, err)
			}
		}
		if len(cfg.Cache.Ignore) > 0 {
			overlay.Ignore = make(map[string]struct{}, len(cfg.Cache.Ignore))
			for _, s := range cfg.Cache.Ignore {
				overlay.Ignore[s] = struct{}{}
			}
		}
		chain = overlay
	}

	server := &session.Server{
		Backend:  chain,
		ServerID: parseIP4(cfg.ServerIdentifier),
	}
	if cfg.Admission != "" {
		if server.Admission, err = policy.NewProgram(cfg.Admission); err != nil {
			return nil, err
		}
	}
	return server, nil
}

func pxeConfig(cfg *config.PXEConfig) pxe.Config {
	out := pxe.Config{
		IP:       parseIP4(cfg.TFTPServer),
		Primary:  cfg.Primary,
		Prefix:   cfg.PathPrefix,
		Hostname: cfg.Hostname,
		Filename: cfg.Filename,
	}
	if len(cfg.Configs) > 0 {
		out.Dynamic.Configs = make(map[string]*pxe.Config, len(cfg.Configs))
		for name, oc := range cfg.Configs {
			out.Dynamic.Configs[name] = &pxe.Config{
				IP:       parseIP4(oc.TFTPServer),
				Hostname: oc.Hostname,
				Filename: oc.Filename,
			}
		}
	}
	if len(cfg.Arches) > 0 {
		out.Dynamic.Arches = make(map[dhcpv4.Arch]*pxe.Config, len(cfg.Arches))
		for arch, name := range cfg.Arches {
			if c, ok := out.Dynamic.Configs[name]; ok {
				out.Dynamic.Arches[dhcpv4.Arch(arch)] = c
			}
		}
	}
	out.Dynamic.Vendors = cfg.Vendors
	return out
}

func parseIP4(s string) net.IP {
	if s == "" {
		return nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	return ip.To4()
}

func parseIPs(in []string) []net.IP {
	var out []net.IP
	for _, s := range in {
		if ip := parseIP4(s); ip != nil {
			out = append(out, ip)
		}
	}
	return out
}

func printVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	var vcsRevision, vcsTime string
	for _, f := range info.Settings {
		switch f.Key {
		case "vcs.revision":
			vcsRevision = f.Value
		case "vcs.time":
			vcsTime = f.Value
		}
	}
	klog.Infof("dhcpd go %s build: %s time: %s", info.GoVersion, vcsRevision, vcsTime)
}
