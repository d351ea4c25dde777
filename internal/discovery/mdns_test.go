// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager defaults and browse result conversion
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{
		ServiceName: "Test Station",
		Port:        8000,
	})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	defer mgr.Stop()

	if mgr.config.Path != DefaultPath {
		t.Errorf("expected default path %s, got %s", DefaultPath, mgr.config.Path)
	}
	if mgr.Servers() == nil {
		t.Error("servers channel should not be nil")
	}
}

func TestServerFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "Night Shift._quartz._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8000,
		InfoFields: []string{"path=/live"},
	}
	s := serverFromEntry(entry)
	if s == nil {
		t.Fatal("expected server info")
	}
	if s.Name != "Night Shift" {
		t.Errorf("expected trimmed name, got %q", s.Name)
	}
	if got := s.URL(); got != "http://192.168.1.20:8000/live" {
		t.Errorf("unexpected URL %s", got)
	}

	entry.InfoFields = nil
	if s := serverFromEntry(entry); s.Path != DefaultPath {
		t.Errorf("expected default path, got %s", s.Path)
	}

	entry.AddrV4 = nil
	if serverFromEntry(entry) != nil {
		t.Error("expected entry without IPv4 address to be skipped")
	}
}

func TestPathFromTXT(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   string
	}{
		{"missing", nil, DefaultPath},
		{"empty value", []string{"path="}, DefaultPath},
		{"other fields first", []string{"version=1", "path=/radio"}, "/radio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pathFromTXT(tt.fields); got != tt.want {
				t.Errorf("pathFromTXT(%v) = %q, want %q", tt.fields, got, tt.want)
			}
		})
	}
}

func TestServerInfoComparable(t *testing.T) {
	a := ServerInfo{Name: "Night Shift", Host: "10.0.0.2", Port: 8000, Path: "/stream"}
	b := a
	if a != b {
		t.Fatal("identical announcements should compare equal")
	}
	b.Port = 8001
	if a == b {
		t.Error("a moved station should be reported again")
	}
}
