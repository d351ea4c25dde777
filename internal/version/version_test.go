// ABOUTME: Tests for product identity
// ABOUTME: Covers the vendor string, request header name and build-time version override
package version

import (
	"net/http"
	"strings"
	"testing"
)

func TestRequestHeaderIsCanonical(t *testing.T) {
	if RequestHeader != "Quartz-Radio" {
		t.Errorf("RequestHeader = %q", RequestHeader)
	}
	// net/http canonicalizes on Set, so a non-canonical name would never match Get
	if got := http.CanonicalHeaderKey(RequestHeader); got != RequestHeader {
		t.Errorf("RequestHeader %q is not canonical (%q)", RequestHeader, got)
	}
}

func TestVendorFollowsVersionOverride(t *testing.T) {
	saved := Version
	defer func() { Version = saved }()

	tests := []struct {
		version string
		want    string
	}{
		{"0.4.0", "quartz 0.4.0"},
		{"1.2.3-rc1", "quartz 1.2.3-rc1"},
		{"dev", "quartz dev"},
	}
	for _, tt := range tests {
		// same effect as -ldflags "-X .../internal/version.Version=..."
		Version = tt.version
		if got := Vendor(); got != tt.want {
			t.Errorf("Version %q: Vendor() = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestDefaultVersionIsRelease(t *testing.T) {
	parts := strings.Split(Version, ".")
	if len(parts) != 3 {
		t.Fatalf("default Version %q is not major.minor.patch", Version)
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			t.Errorf("default Version %q has a non-numeric part %q", Version, p)
		}
	}
}

func TestProductNames(t *testing.T) {
	if Product == "" || Manufacturer == "" {
		t.Errorf("Product %q and Manufacturer %q must be set", Product, Manufacturer)
	}
	if !strings.HasPrefix(Product, Manufacturer) {
		t.Errorf("Product %q should carry the manufacturer name %q", Product, Manufacturer)
	}
}
