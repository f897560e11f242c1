// Package device turns a User-Agent header into a short display label that
// is stored with a session.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknown = "Unknown Device"

// ParseUserAgent returns "<browser> on <os>", or "Unknown Device" for an
// empty header.
func ParseUserAgent(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return unknown
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := parsed.OS()
	if os == "" {
		os = parsed.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// IsMobile reports whether ua comes from a phone or tablet.
func IsMobile(ua string) bool {
	if ua == "" {
		return false
	}
	return useragent.New(ua).Mobile()
}
