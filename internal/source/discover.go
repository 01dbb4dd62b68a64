package source

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// iqService is the mDNS service type advertised by IQ streaming servers.
const iqService = "_iq-stream._tcp"

// Server is a discovered IQ streaming endpoint.
type Server struct {
	Instance  string
	Hostname  string
	Addresses []net.IP
	Port      int
}

// Addr returns a dialable host:port for the server, preferring IPv4.
func (s Server) Addr() string {
	for _, ip := range s.Addresses {
		if ip.To4() != nil {
			return fmt.Sprintf("%s:%d", ip, s.Port)
		}
	}
	if len(s.Addresses) > 0 {
		return fmt.Sprintf("[%s]:%d", s.Addresses[0], s.Port)
	}
	return fmt.Sprintf("%s:%d", strings.TrimSuffix(s.Hostname, "."), s.Port)
}

// Discover performs a blocking mDNS browse for IQ streaming servers on
// the local network and returns deduplicated entries.
func Discover(timeout time.Duration) ([]Server, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(map[string]Server)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				if e == nil {
					continue
				}
				addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
				addrs = append(addrs, e.AddrIPv4...)
				addrs = append(addrs, e.AddrIPv6...)
				key := fmt.Sprintf("%s|%d", e.HostName, e.Port)
				found[key] = Server{
					Instance:  strings.ReplaceAll(e.Instance, `\ `, " "),
					Hostname:  e.HostName,
					Addresses: addrs,
					Port:      e.Port,
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, iqService, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}
	<-done

	out := make([]Server, 0, len(found))
	for _, s := range found {
		out = append(out, s)
	}
	return out, nil
}
