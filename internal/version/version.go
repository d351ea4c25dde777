// ABOUTME: Version information for quartz
// ABOUTME: Product identity reported in stream headers, HTTP requests and mDNS
package version

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/quartz-radio/quartz/internal/version.Version=..."
var Version = "0.4.0"

const (
	Product      = "Quartz Radio"
	Manufacturer = "Quartz"
)

// Vendor returns the encoder vendor string written into OpusTags.
func Vendor() string {
	return "quartz " + Version
}

// RequestHeader is the header quartz sets on outgoing track fetches.
const RequestHeader = "Quartz-Radio"
