package adapter

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/MKhiriev/go-vault-sync/models"
)

// Official endpoints of the hosted regions.
var (
	usURLs = models.ServerURLs{
		Vault:    "https://vault.bitwarden.com",
		Identity: "https://identity.bitwarden.com",
		API:      "https://api.bitwarden.com",
	}
	euURLs = models.ServerURLs{
		Vault:    "https://vault.bitwarden.eu",
		Identity: "https://identity.bitwarden.eu",
		API:      "https://api.bitwarden.eu",
	}
)

// Region classifies a server URL.
func Region(serverURL string) models.Region {
	host := strings.ToLower(serverURL)
	if u, err := url.Parse(normalizeScheme(serverURL)); err == nil && u.Host != "" {
		host = strings.ToLower(u.Hostname())
	}

	switch {
	case strings.Contains(host, "bitwarden.eu"):
		return models.RegionEU
	case strings.Contains(host, "bitwarden.com"):
		return models.RegionUS
	default:
		return models.RegionSelfHosted
	}
}

// ResolveServerURLs returns the vault, identity and API base URLs for
// serverURL. Official US and EU hosts map to their fixed endpoints; any
// other URL is self-hosted with "/identity" and "/api" below it. An empty
// URL means the US region.
func ResolveServerURLs(serverURL string) models.ServerURLs {
	serverURL = strings.TrimSpace(serverURL)
	if serverURL == "" {
		return usURLs
	}

	switch Region(serverURL) {
	case models.RegionUS:
		return usURLs
	case models.RegionEU:
		return euURLs
	}

	base := strings.TrimRight(normalizeScheme(serverURL), "/")
	return models.ServerURLs{
		Vault:    base,
		Identity: base + "/identity",
		API:      base + "/api",
	}
}

// ValidateServerURL checks that raw names a host over http or https.
func ValidateServerURL(raw string) error {
	u, err := url.Parse(normalizeScheme(strings.TrimSpace(raw)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidServerURL, err)
	}
	if u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, raw)
	}
	return nil
}

func normalizeScheme(raw string) string {
	if raw != "" && !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
