// Package dns provides the reverse-DNS lookup used to annotate inbound
// connections in logs. It queries PTR records directly so lookups honor the
// configured timeout instead of the platform resolver's.
package dns

import (
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

// Timeout bounds a single PTR query.
const Timeout = 5 * time.Second

// ReverseLookup resolves the PTR record for the peer address. It returns the
// first PTR name found, without its trailing dot.
func ReverseLookup(addr net.Addr) (string, error) {
	ip, err := ipFromAddr(addr)
	if err != nil {
		return "", err
	}

	arpa, err := mdns.ReverseAddr(ip.String())
	if err != nil {
		return "", fmt.Errorf("reverse address: %w", err)
	}

	msg := new(mdns.Msg)
	msg.SetQuestion(arpa, mdns.TypePTR)
	msg.RecursionDesired = true

	config, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("read resolver config: %w", err)
	}

	client := &mdns.Client{Timeout: Timeout}
	var lastErr error

	for _, server := range config.Servers {
		r, _, err := client.Exchange(msg, net.JoinHostPort(server, config.Port))
		if err != nil {
			lastErr = err
			continue
		}
		if r.Rcode != mdns.RcodeSuccess {
			lastErr = fmt.Errorf("query failed: %s", mdns.RcodeToString[r.Rcode])
			continue
		}
		for _, ans := range r.Answer {
			if ptr, ok := ans.(*mdns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, "."), nil
			}
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("reverse lookup: %w", lastErr)
	}
	return "", fmt.Errorf("no PTR records for %s", ip)
}

// ipFromAddr extracts the IP from a net.Addr.
func ipFromAddr(addr net.Addr) (net.IP, error) {
	if addr == nil {
		return nil, fmt.Errorf("address is nil")
	}

	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP, nil
	case *net.UDPAddr:
		return a.IP, nil
	case *net.IPAddr:
		return a.IP, nil
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("no IP in address %q", addr)
	}
	return ip, nil
}
