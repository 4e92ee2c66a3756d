package bgclient

import (
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// ServiceName identifies a logical backend service with one or more
// physical base URLs.
type ServiceName string

const (
	// ServiceAdminAPI is the primary platform API.
	ServiceAdminAPI ServiceName = "admin-api"

	// ServiceSTACBrowser is the catalog browser.
	ServiceSTACBrowser ServiceName = "stac-browser"

	// ServiceGeoAPI is the geospatial API (pygeoapi).
	ServiceGeoAPI ServiceName = "pygeoapi"

	// ServiceKeycloak is the authentication console.
	ServiceKeycloak ServiceName = "keycloak"

	// ServiceMinIO is the object storage console.
	ServiceMinIO ServiceName = "minio"
)

// EnvironmentProfile is the immutable base configuration for one deployment
// profile: whether it is a development profile, the site base URL, and the
// primary URL per logical service. It is created once by ResolveEnvironment
// and safely shared read-only across concurrent calls.
type EnvironmentProfile struct {
	development bool
	baseURL     string
	primaries   map[ServiceName]string
}

// NewEnvironmentProfile builds a profile from explicit values. Hosting
// environments that manage their own configuration use this instead of
// ResolveEnvironment. The primaries map is copied, keeping the profile
// immutable after construction.
func NewEnvironmentProfile(development bool, baseURL string, primaries map[ServiceName]string) *EnvironmentProfile {
	copied := make(map[ServiceName]string, len(primaries))
	for service, u := range primaries {
		copied[service] = u
	}
	return &EnvironmentProfile{
		development: development,
		baseURL:     baseURL,
		primaries:   copied,
	}
}

// IsDevelopment reports whether the development profile is active.
func (p *EnvironmentProfile) IsDevelopment() bool { return p.development }

// BaseURL returns the site base URL for the active profile.
func (p *EnvironmentProfile) BaseURL() string { return p.baseURL }

// PrimaryURL returns the primary base URL for a logical service.
// The second return value is false when the service has no primary
// declared in this profile.
func (p *EnvironmentProfile) PrimaryURL(service ServiceName) (string, bool) {
	u, ok := p.primaries[service]
	return u, ok
}

// Services returns the logical services with a primary URL in this profile,
// sorted by name.
func (p *EnvironmentProfile) Services() []ServiceName {
	names := make([]ServiceName, 0, len(p.primaries))
	for s := range p.primaries {
		names = append(names, s)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ResolveEnvironment determines the active deployment profile and returns
// its configuration. It never fails: signals are read in priority order
// (BGAPP_ENV, then the resolved host name) and when both are absent the
// production profile is assumed.
//
// Per-service primary URLs can be overridden with BGAPP_URL_<SERVICE>
// environment variables, e.g. BGAPP_URL_ADMIN_API.
func ResolveEnvironment() *EnvironmentProfile {
	dev := false
	switch strings.ToLower(os.Getenv("BGAPP_ENV")) {
	case "development", "dev", "local":
		dev = true
	case "production", "prod":
		dev = false
	default:
		if host, err := os.Hostname(); err == nil && isLocalHost(host) {
			dev = true
		}
	}

	var profile *EnvironmentProfile
	if dev {
		profile = developmentProfile()
	} else {
		profile = productionProfile()
	}

	for service := range profile.primaries {
		if override := os.Getenv(envURLKey(service)); override != "" {
			profile.primaries[service] = strings.TrimRight(override, "/")
		}
	}
	return profile
}

// LoadDotenv loads environment variables from the given .env files before
// resolution. Missing files are ignored so the same binary runs with or
// without a local override file.
func LoadDotenv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return err
		}
	}
	return nil
}

func developmentProfile() *EnvironmentProfile {
	return &EnvironmentProfile{
		development: true,
		baseURL:     "http://localhost:8085",
		primaries: map[ServiceName]string{
			ServiceAdminAPI:    "http://localhost:8000",
			ServiceSTACBrowser: "http://localhost:8082",
			ServiceGeoAPI:      "http://localhost:5080",
			ServiceKeycloak:    "http://localhost:8083",
			ServiceMinIO:       "http://localhost:9000",
		},
	}
}

func productionProfile() *EnvironmentProfile {
	return &EnvironmentProfile{
		development: false,
		baseURL:     "https://bgapp.ao",
		primaries: map[ServiceName]string{
			ServiceAdminAPI:    "https://api.bgapp.ao",
			ServiceSTACBrowser: "https://stac.bgapp.ao",
			ServiceGeoAPI:      "https://geoapi.bgapp.ao",
			ServiceKeycloak:    "https://auth.bgapp.ao",
			ServiceMinIO:       "https://storage.bgapp.ao",
		},
	}
}

func isLocalHost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" ||
		host == "127.0.0.1" ||
		strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".localdomain")
}

func envURLKey(service ServiceName) string {
	name := strings.ToUpper(strings.ReplaceAll(string(service), "-", "_"))
	return "BGAPP_URL_" + name
}
