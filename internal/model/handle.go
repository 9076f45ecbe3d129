package model

import (
	"fmt"
	"regexp"
	"strings"
)

// RootLocalPart is the distinguished local part denoted by a bare
// domain handle.
const RootLocalPart = "root"

var (
	localPartRe = regexp.MustCompile(`^[a-z0-9.]{3,32}$`)
	domainRe    = regexp.MustCompile(`^[a-z0-9.-]{3,253}$`)
)

// Handle is a federated account identifier: "@local:domain", or a bare
// domain for that server's root account.
type Handle struct {
	LocalPart string
	Domain    string
}

// ParseHandle validates and case-folds a handle string. A string
// without the "@local:" prefix is treated as the root account of that
// domain.
func ParseHandle(s string) (Handle, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if !strings.HasPrefix(s, "@") {
		if !domainRe.MatchString(s) {
			return Handle{}, fmt.Errorf("invalid domain %q", s)
		}
		return Handle{LocalPart: RootLocalPart, Domain: s}, nil
	}

	local, domain, ok := strings.Cut(s[1:], ":")
	if !ok {
		return Handle{}, fmt.Errorf("handle %q is missing a domain separator", s)
	}
	if !localPartRe.MatchString(local) {
		return Handle{}, fmt.Errorf("invalid local part %q", local)
	}
	if !domainRe.MatchString(domain) {
		return Handle{}, fmt.Errorf("invalid domain %q", domain)
	}
	return Handle{LocalPart: local, Domain: domain}, nil
}

// IsRoot reports whether the handle names the server's root account.
func (h Handle) IsRoot() bool {
	return h.LocalPart == RootLocalPart
}

// String formats the handle. Root accounts format as the bare domain,
// so only non-root handles round-trip through ParseHandle unchanged.
func (h Handle) String() string {
	if h.IsRoot() {
		return h.Domain
	}
	return "@" + h.LocalPart + ":" + h.Domain
}
