// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"net/netip"
	"strings"
)

// safePrefixes is the fixed address space treated as inside the
// perimeter: loopback, RFC 1918 private ranges, link-local, and IPv6
// unique-local.
var safePrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// SafeAddressSpace returns a copy of the safe prefixes in order.
func SafeAddressSpace() []netip.Prefix {
	return append([]netip.Prefix(nil), safePrefixes...)
}

// Verdict is the classification of one remote endpoint.
type Verdict int

const (
	// Ignore means there is no remote address to judge.
	Ignore Verdict = iota

	// Safe means the address is inside the perimeter.
	Safe

	// Violation means the address is outside the perimeter or could not
	// be parsed.
	Violation
)

func (v Verdict) String() string {
	switch v {
	case Ignore:
		return "ignore"
	case Safe:
		return "safe"
	case Violation:
		return "violation"
	default:
		return "unknown"
	}
}

// Classify judges a remote endpoint. It accepts a bare address or an
// address with a port ("203.0.113.9:443", "[2001:db8::1]:443") and
// strips IPv6 zone identifiers. IPv4-mapped IPv6 addresses are judged
// as IPv4. Empty and "*" are ignored. Anything else that does not parse
// as an IP address is a violation.
func Classify(remote string) Verdict {
	host := strings.TrimSpace(remote)
	if host == "" || host == "*" {
		return Ignore
	}
	address, ok := parseHost(host)
	if !ok {
		return Violation
	}
	if Inside(address) {
		return Safe
	}
	return Violation
}

// Inside reports whether address is in the safe address space.
func Inside(address netip.Addr) bool {
	address = address.WithZone("").Unmap()
	for _, prefix := range safePrefixes {
		if prefix.Contains(address) {
			return true
		}
	}
	return false
}

func parseHost(host string) (netip.Addr, bool) {
	if address, err := netip.ParseAddr(host); err == nil {
		return address, true
	}
	if addrPort, err := netip.ParseAddrPort(host); err == nil {
		return addrPort.Addr(), true
	}

	// Bracketed IPv6 without a port, or a zone netip rejects.
	host = strings.TrimPrefix(host, "[")
	if closing := strings.Index(host, "]"); closing >= 0 {
		host = host[:closing]
	} else if strings.Count(host, ":") == 1 {
		host, _, _ = strings.Cut(host, ":")
	}
	host, _, _ = strings.Cut(host, "%")
	address, err := netip.ParseAddr(host)
	return address, err == nil
}
