// Package cloak builds the outbound tracking URLs shown to end users.
// Clicks are routed through a redirect endpoint carrying the affiliate
// token and the percent-encoded destination.
package cloak

import (
	"net/url"
	"strings"
)

const (
	// defaultBase is the redirect host used when only a bare token is configured.
	defaultBase = "https://goeco.mobi/?token="

	// destMarker separates the redirect base from the encoded destination.
	destMarker = "&url="

	// sourceMarker tags cloaked links so the redirect endpoint can
	// attribute the click.
	sourceMarker = "&source=api_product"

	// tokenAnchor is the query fragment a custom base must carry to be usable.
	tokenAnchor = "?token="
)

// Config carries the cloaking parameters from the active settings.
// The zero value means no cloaking: destinations pass through unchanged.
type Config struct {
	Token         string
	CustomBaseURL string
}

// Outbound transforms a destination URL into the outbound tracking URL.
// It never fails; absence of configuration is a valid pass-through state.
func Outbound(destination string, cfg Config) string {
	if destination == "" {
		return ""
	}

	// A full custom base URL (already carrying a token) wins over a bare token.
	if cfg.CustomBaseURL != "" && strings.Contains(cfg.CustomBaseURL, tokenAnchor) {
		// Reuse only the portion before any previous destination fragment,
		// otherwise repeated cloaking would stack url= parameters.
		base := cfg.CustomBaseURL
		if i := strings.Index(base, destMarker); i >= 0 {
			base = base[:i]
		}
		return base + destMarker + encodeDestination(destination) + sourceMarker
	}

	if cfg.Token != "" {
		return defaultBase + cfg.Token + destMarker + encodeDestination(destination) + sourceMarker
	}

	return destination
}

// encodeDestination percent-encodes a destination URL for embedding in a
// query parameter. Spaces become %20, not "+", so the value decodes
// identically in every consumer.
func encodeDestination(destination string) string {
	return strings.ReplaceAll(url.QueryEscape(destination), "+", "%20")
}
