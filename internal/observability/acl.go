// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package observability exposes metrics, health, and snapshot export over
// HTTP, gated by a deny-by-default CIDR allowlist.
package observability

import (
	"net/http"
	"net/netip"
)

// ACL is a deny-by-default allowlist: an HTTP request's remote address is
// rejected unless it falls inside at least one configured prefix.
type ACL struct {
	allow []netip.Prefix
}

// NewACL builds an ACL from already-parsed prefixes. A bare host is
// represented as a single-address prefix (its full bit length).
func NewACL(allow []netip.Prefix) *ACL {
	return &ACL{allow: allow}
}

// Middleware wraps next so that requests from addresses the ACL denies
// never reach it.
func (a *ACL) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Allowed(r.RemoteAddr) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allowed reports whether remoteAddr — either "host:port" or a bare host —
// matches one of the ACL's allowed prefixes.
func (a *ACL) Allowed(remoteAddr string) bool {
	addr, ok := remoteHostAddr(remoteAddr)
	if !ok {
		return false
	}
	for _, prefix := range a.allow {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// remoteHostAddr extracts the host portion of remoteAddr and parses it as
// an IP address, trying the "host:port" form first and falling back to
// treating the whole string as a bare host.
func remoteHostAddr(remoteAddr string) (netip.Addr, bool) {
	if addrPort, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return addrPort.Addr(), true
	}
	addr, err := netip.ParseAddr(remoteAddr)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}
