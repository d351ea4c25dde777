// ABOUTME: mDNS service discovery for Quartz stations
// ABOUTME: Handles both advertisement (station) and browsing (listener)
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD service stations advertise.
	ServiceType = "_quartz._tcp"

	// DefaultPath is the stream path advertised when none is configured.
	DefaultPath = "/stream"

	browseTimeout  = 3 * time.Second
	browseInterval = 5 * time.Second
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string // stream path published in the TXT record
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered station
type ServerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// URL returns the station's stream URL.
func (s *ServerInfo) URL() string {
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(s.Host, fmt.Sprint(s.Port)), s.Path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise publishes this station via mDNS until Stop.
func (m *Manager) Advertise() error {
	ips, err := advertiseIPs()
	if err != nil {
		return fmt.Errorf("failed to find addresses to advertise: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + m.config.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for stations until Stop. Each station is reported once
// on Servers, unless its address or path changes.
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	seen := make(map[string]ServerInfo)
	ticker := time.NewTicker(browseInterval)
	defer ticker.Stop()

	for {
		for _, server := range m.query() {
			if prev, ok := seen[server.Name]; ok && prev == *server {
				continue
			}
			seen[server.Name] = *server
			log.Printf("Discovered station: %s at %s", server.Name, server.URL())

			select {
			case m.servers <- server:
			case <-m.ctx.Done():
				return
			}
		}

		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// query runs one mDNS lookup and collects usable answers.
func (m *Manager) query() []*ServerInfo {
	entries := make(chan *mdns.ServiceEntry, 16)
	var found []*ServerInfo
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if server := serverFromEntry(entry); server != nil {
				found = append(found, server)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Timeout = browseTimeout
	params.Entries = entries
	params.DisableIPv6 = true
	if err := mdns.Query(params); err != nil {
		log.Printf("mDNS query failed: %v", err)
	}
	close(entries)
	<-done
	return found
}

// serverFromEntry converts a browse result, skipping entries without an
// IPv4 address.
func serverFromEntry(entry *mdns.ServiceEntry) *ServerInfo {
	if entry.AddrV4 == nil {
		return nil
	}
	return &ServerInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: pathFromTXT(entry.InfoFields),
	}
}

func pathFromTXT(fields []string) string {
	for _, f := range fields {
		if v, ok := strings.CutPrefix(f, "path="); ok && v != "" {
			return v
		}
	}
	return DefaultPath
}

// Servers returns the channel of discovered stations
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// advertiseIPs returns the IPv4 addresses of interfaces that are up,
// excluding loopback.
func advertiseIPs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if v4 := ipnet.IP.To4(); v4 != nil && !v4.IsLoopback() {
				ips = append(ips, v4)
			}
		}
	}
	if len(ips) == 0 {
		return nil, errors.New("no usable network interface")
	}
	return ips, nil
}
