package discovery

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// DefaultService is the DNS-SD service type sketchroom servers announce.
const DefaultService = "_sketchroom._tcp"

// Endpoint is one server found on the local network.
type Endpoint struct {
	Instance string
	Host     string
	Port     int
	Info     []string
}

func (e Endpoint) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Advertiser announces this server over multicast DNS so clients on the
// same LAN can find it without configuration.
type Advertiser struct {
	server *mdns.Server
	logger *zap.SugaredLogger
}

func newService(instance, service string, port int, info []string) (*mdns.MDNSService, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}
	if service == "" {
		service = DefaultService
	}
	if len(info) == 0 {
		info = []string{"sketchroom"}
	}

	svc, err := mdns.NewMDNSService(instance, service, "", "", port, localIPs(), info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return svc, nil
}

func Advertise(instance, service string, port int, info []string, logger *zap.SugaredLogger) (*Advertiser, error) {
	svc, err := newService(instance, service, port, info)
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}

	logger.Infow("Advertising over mDNS",
		"instance", svc.Instance,
		"service", svc.Service,
		"port", port,
	)
	return &Advertiser{server: server, logger: logger}, nil
}

func (a *Advertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	a.logger.Info("Stopping mDNS advertisement")
	return a.server.Shutdown()
}

// Browse queries the LAN for servers for up to timeout and returns what
// answered. Entries without an IPv4 address or port are skipped.
func Browse(service string, timeout time.Duration) ([]Endpoint, error) {
	if service == "" {
		service = DefaultService
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	var found []Endpoint
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if ep, ok := toEndpoint(e); ok {
				found = append(found, ep)
			}
		}
	}()

	params := mdns.DefaultParams(service)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("mDNS query failed: %w", err)
	}
	return found, nil
}

func toEndpoint(e *mdns.ServiceEntry) (Endpoint, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Endpoint{}, false
	}
	return Endpoint{
		Instance: e.Name,
		Host:     e.AddrV4.String(),
		Port:     e.Port,
		Info:     e.InfoFields,
	}, true
}

// localIPs returns the first usable IPv4 address. The hostname is not
// looked up because it rarely resolves inside containers.
func localIPs() []net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return []net.IP{ipnet.IP.To4()}
			}
		}
	}
	return []net.IP{net.IPv4(127, 0, 0, 1)}
}
