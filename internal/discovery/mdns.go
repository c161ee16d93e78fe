// ABOUTME: mDNS advertisement and browsing for kiosk speakers
// ABOUTME: Lets other kiosk components find a speaker's HTTP endpoint on the LAN
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/mdns"

	"github.com/zenkiosk/kiosk-speaker/internal/version"
)

// ServiceType is the DNS-SD type speakers advertise
const ServiceType = "_" + version.Product + "._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	server *mdns.Server
	logger *log.Logger
}

// SpeakerInfo describes a discovered speaker
type SpeakerInfo struct {
	Name    string
	Host    string
	Port    int
	Version string
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		logger: log.WithPrefix("mdns"),
	}
}

// Advertise announces this speaker until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	m.server = server

	m.logger.Info("Advertising speaker", "name", m.config.ServiceName, "port", m.config.Port, "type", ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse queries the network once for speakers, listening for up to
// timeout or until ctx's deadline, whichever is sooner
func Browse(ctx context.Context, timeout time.Duration) ([]SpeakerInfo, error) {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	var found []SpeakerInfo

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for entry := range entries {
			found = append(found, speakerFromEntry(entry))
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true

	// Query only returns once its listeners are done, so entries can be closed
	err := mdns.Query(params)
	close(entries)
	<-collected

	if err != nil {
		return found, fmt.Errorf("mdns query: %w", err)
	}
	return found, nil
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.cancel()
}

func txtRecords() []string {
	return []string{
		"path=/speak",
		"version=" + version.Version,
	}
}

func speakerFromEntry(entry *mdns.ServiceEntry) SpeakerInfo {
	info := SpeakerInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Port: entry.Port,
	}
	if entry.AddrV4 != nil {
		info.Host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		info.Host = entry.AddrV6.String()
	}
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "version="); ok {
			info.Version = v
		}
	}
	return info
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
