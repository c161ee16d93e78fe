// ABOUTME: Version constants for kiosk-speaker
// ABOUTME: Reported in logs, the status endpoint and the mDNS TXT record
package version

// Version is overridden at build time with -ldflags "-X ..."
var Version = "0.3.0"

const (
	Product      = "kiosk-speaker"
	Manufacturer = "zenkiosk"
)
