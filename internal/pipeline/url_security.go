package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
)

// Candidate URLs arrive from external search providers and are treated as
// hostile input. Enrichment reads only plain web URLs on standard ports, and
// the host is re-checked after DNS resolution so a public-looking name cannot
// point a read into private address space.

var (
	errSchemeNotAllowed = errors.New("unsupported url scheme")
	errHostNotAllowed   = errors.New("blocked url host")
	errPortNotAllowed   = errors.New("blocked url port")
)

// reservedHostSuffixes name hosts that only resolve inside an operator's own
// network and never identify a public evidence source.
var reservedHostSuffixes = []string{".localhost", ".local", ".internal"}

// ulaPrefix is the IPv6 unique-local range (fc00::/7), which netip does not
// classify as private.
var ulaPrefix = netip.MustParsePrefix("fc00::/7")

// validateSourceURL vets a candidate URL before any request is built for it.
// The parsed form is returned so the caller fetches exactly what was checked.
func validateSourceURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	if parsed == nil || parsed.Host == "" {
		return nil, errors.New("url host is required")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errSchemeNotAllowed
	}

	hostname := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if hostname == "" {
		return nil, errors.New("url hostname is required")
	}
	if hostnameIsReserved(hostname) {
		return nil, errHostNotAllowed
	}
	if !portIsAllowed(parsed.Port()) {
		return nil, errPortNotAllowed
	}
	return parsed, nil
}

// portIsAllowed accepts only the default web ports; an absent port means the
// scheme default applies.
func portIsAllowed(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return true
	}
	port, err := strconv.Atoi(trimmed)
	if err != nil {
		return false
	}
	return port == 80 || port == 443
}

func hostnameIsReserved(hostname string) bool {
	if hostname == "localhost" {
		return true
	}
	for _, suffix := range reservedHostSuffixes {
		if strings.HasSuffix(hostname, suffix) {
			return true
		}
	}
	if ip, err := netip.ParseAddr(hostname); err == nil {
		return addrIsNonPublic(ip)
	}
	return false
}

// validateDialAddress repeats the host check at dial time, against the
// resolved addresses. This is the rebinding guard: name-level validation has
// already passed by the time this runs.
func validateDialAddress(ctx context.Context, host string) error {
	if hostnameIsReserved(host) {
		return errHostNotAllowed
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return err
	}
	if len(ips) == 0 {
		return fmt.Errorf("no ip addresses for host %q", host)
	}
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		if addrIsNonPublic(addr) {
			return errHostNotAllowed
		}
	}
	return nil
}

func addrIsNonPublic(ip netip.Addr) bool {
	if !ip.IsValid() {
		return true
	}
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified():
		return true
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return true
	case ip.IsMulticast(), ip.IsInterfaceLocalMulticast():
		return true
	}
	return ulaPrefix.Contains(ip.Unmap())
}

// secureDialContext wraps a dialer so every outbound connection passes the
// resolved-address check, redirects included.
func secureDialContext(base *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	if base == nil {
		base = &net.Dialer{}
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			host = address
		}
		host = strings.TrimSpace(host)
		if host == "" {
			return nil, errors.New("empty host")
		}
		if err := validateDialAddress(ctx, host); err != nil {
			return nil, err
		}
		return base.DialContext(ctx, network, address)
	}
}
