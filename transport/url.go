package transport

import (
	"fmt"
	"net/url"
)

// parseURL validates that rawURL is a ws:// or wss:// URL with a host.
func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported scheme %q, want ws or wss", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL missing host: %s", rawURL)
	}
	return u, nil
}
