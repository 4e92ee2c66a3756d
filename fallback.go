package bgclient

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FallbackChain is the ordered, deduplicated list of candidate base URLs
// for one logical service. The primary URL comes first, followed by the
// declared alternates in order. Immutable once built; safely shared across
// concurrent calls.
type FallbackChain struct {
	service ServiceName
	urls    []string
}

// Service returns the logical service this chain was built for.
func (c FallbackChain) Service() ServiceName { return c.service }

// Primary returns the first URL in the chain.
func (c FallbackChain) Primary() string { return c.urls[0] }

// Len returns the number of candidate URLs.
func (c FallbackChain) Len() int { return len(c.urls) }

// At returns the candidate URL at position i.
func (c FallbackChain) At(i int) string { return c.urls[i] }

// URLs returns a copy of the candidate URLs in chain order.
func (c FallbackChain) URLs() []string {
	out := make([]string, len(c.urls))
	copy(out, c.urls)
	return out
}

// FallbackTable declares the ordered alternate base URLs per logical
// service. The profile's primary URL is always tried first and is not part
// of the table.
type FallbackTable map[ServiceName][]string

// DefaultFallbackTable returns the platform's static fallback declaration:
// the mirror deployments tried after the primary for each service.
func DefaultFallbackTable() FallbackTable {
	return FallbackTable{
		ServiceAdminAPI: {
			"https://api.arcasadeveloping.org",
			"https://admin.bgapp.majearcasa.com",
		},
		ServiceSTACBrowser: {
			"https://stac.arcasadeveloping.org",
		},
		ServiceGeoAPI: {
			"https://geoapi.arcasadeveloping.org",
		},
		ServiceKeycloak: {},
		ServiceMinIO:    {},
	}
}

// ParseFallbackTable decodes a YAML fallback declaration of the form:
//
//	admin-api:
//	  - https://api.arcasadeveloping.org
//	pygeoapi:
//	  - https://geoapi.arcasadeveloping.org
func ParseFallbackTable(data []byte) (FallbackTable, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing fallback table: %w", err)
	}
	table := make(FallbackTable, len(raw))
	for name, urls := range raw {
		table[ServiceName(name)] = urls
	}
	return table, nil
}

// LoadFallbackTable reads and parses a YAML fallback declaration file.
func LoadFallbackTable(path string) (FallbackTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fallback table: %w", err)
	}
	return ParseFallbackTable(data)
}

// BuildFallbackChain produces the candidate chain for a service: the
// profile's primary URL first, then the table's alternates in declared
// order, with exact duplicates removed (first occurrence wins). It fails
// with a *ConfigurationError only when the service has neither a primary
// nor any declared fallback; callers must treat that as a configuration
// problem, not a network failure.
func BuildFallbackChain(profile *EnvironmentProfile, table FallbackTable, service ServiceName) (FallbackChain, error) {
	var candidates []string
	if primary, ok := profile.PrimaryURL(service); ok {
		candidates = append(candidates, primary)
	}
	candidates = append(candidates, table[service]...)

	seen := make(map[string]struct{}, len(candidates))
	urls := make([]string, 0, len(candidates))
	for _, u := range candidates {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	if len(urls) == 0 {
		return FallbackChain{}, &ConfigurationError{
			Service: service,
			Reason:  "no primary URL and no fallback declared",
		}
	}
	return FallbackChain{service: service, urls: urls}, nil
}
