package peer

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy validates the Origin header on websocket upgrade requests
// against a configured allow-list. It is owned by the peer server rather
// than held in package-level state.
type originPolicy struct {
	allowed  map[string]struct{}
	allowAll bool
}

// newOriginPolicy normalizes the configured origins, dropping invalid
// entries and honoring "*" as allow-all.
func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{}, len(origins))}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			p.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		p.allowed[normalized] = struct{}{}
	}

	return p
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// check is the gorilla CheckOrigin hook.
func (p *originPolicy) check(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	if p.allowAll {
		return true
	}
	if _, exists := p.allowed[normalized]; exists {
		return true
	}

	log.Printf("Blocked websocket connection from disallowed origin: %q", originHeader)
	return false
}
