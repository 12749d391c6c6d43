package models

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// IPAllowEntry is an administrative allow-list row. Patterns accept exact
// addresses ("10.0.0.4"), CIDR prefixes ("10.0.0.0/24") and wildcard
// segments ("10.0.*.*").
type IPAllowEntry struct {
	ID          int       `json:"id" db:"id"`
	Pattern     string    `json:"pattern" db:"pattern"`
	Description string    `json:"description" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedBy   *string   `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Matches reports whether the given address falls under this entry's pattern.
func (e *IPAllowEntry) Matches(addr string) bool {
	pattern := strings.TrimSpace(e.Pattern)
	if pattern == "" || addr == "" {
		return false
	}

	if strings.Contains(pattern, "/") {
		_, ipNet, err := net.ParseCIDR(pattern)
		if err != nil {
			return false
		}
		ip := net.ParseIP(addr)
		return ip != nil && ipNet.Contains(ip)
	}

	if strings.Contains(pattern, "*") {
		return matchWildcard(pattern, addr)
	}

	patIP := net.ParseIP(pattern)
	ip := net.ParseIP(addr)
	return patIP != nil && ip != nil && patIP.Equal(ip)
}

// ValidIPPattern checks that a pattern parses as one of the accepted forms
// before it is stored; a typo here would otherwise silently match nothing.
func ValidIPPattern(pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}

	if strings.Contains(pattern, "/") {
		_, _, err := net.ParseCIDR(pattern)
		return err == nil
	}

	if strings.Contains(pattern, "*") {
		segs := strings.Split(pattern, ".")
		if len(segs) != 4 {
			return false
		}
		for _, seg := range segs {
			if seg == "*" {
				continue
			}
			n, err := strconv.Atoi(seg)
			if err != nil || n < 0 || n > 255 {
				return false
			}
		}
		return true
	}

	return net.ParseIP(pattern) != nil
}

func matchWildcard(pattern, addr string) bool {
	patSegs := strings.Split(pattern, ".")
	addrSegs := strings.Split(addr, ".")
	if len(patSegs) != 4 || len(addrSegs) != 4 {
		return false
	}
	for i, seg := range patSegs {
		if seg == "*" {
			continue
		}
		if seg != addrSegs[i] {
			return false
		}
	}
	return true
}
