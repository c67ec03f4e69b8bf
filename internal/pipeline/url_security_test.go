package pipeline

import (
	"errors"
	"net/netip"
	"testing"
)

func TestValidateSourceURLSchemes(t *testing.T) {
	for _, rawURL := range []string{"https://sante.gouv.fr/reco", "http://ec.europa.eu/page"} {
		if _, err := validateSourceURL(rawURL); err != nil {
			t.Fatalf("expected %q to be allowed: %v", rawURL, err)
		}
	}
	if _, err := validateSourceURL("file:///etc/passwd"); !errors.Is(err, errSchemeNotAllowed) {
		t.Fatalf("expected file scheme to be denied, got %v", err)
	}
	if _, err := validateSourceURL("ftp://sante.gouv.fr/doc"); !errors.Is(err, errSchemeNotAllowed) {
		t.Fatalf("expected ftp scheme to be denied, got %v", err)
	}
}

func TestValidateSourceURLBlocksReservedHosts(t *testing.T) {
	blocked := []string{
		"http://127.0.0.1/admin",
		"http://[::1]/",
		"http://10.0.0.8/evidence",
		"http://192.168.1.20/doc",
		"http://localhost/metrics",
		"http://cache.internal/doc",
		"http://printer.local/page",
	}
	for _, rawURL := range blocked {
		if _, err := validateSourceURL(rawURL); !errors.Is(err, errHostNotAllowed) {
			t.Fatalf("expected %q to be blocked, got %v", rawURL, err)
		}
	}
}

func TestValidateSourceURLBlocksNonWebPorts(t *testing.T) {
	if _, err := validateSourceURL("http://sante.gouv.fr:6379/doc"); !errors.Is(err, errPortNotAllowed) {
		t.Fatalf("expected redis port to be blocked, got %v", err)
	}
	if _, err := validateSourceURL("https://sante.gouv.fr:443/doc"); err != nil {
		t.Fatalf("expected explicit default port to pass: %v", err)
	}
}

func TestAddrIsNonPublic(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1":      true,
		"10.1.2.3":       true,
		"169.254.0.9":    true,
		"0.0.0.0":        true,
		"fd12::1":        true,
		"fe80::1":        true,
		"::1":            true,
		"185.24.184.100": false,
		"2001:db8::10":   false,
	}
	for raw, want := range cases {
		if got := addrIsNonPublic(mustAddr(t, raw)); got != want {
			t.Fatalf("addrIsNonPublic(%s) = %v, want %v", raw, got, want)
		}
	}
}

func mustAddr(t *testing.T, raw string) netip.Addr {
	t.Helper()
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		t.Fatalf("parse addr %q: %v", raw, err)
	}
	return addr
}
