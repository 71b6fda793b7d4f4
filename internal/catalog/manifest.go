package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"cardhub/pkg/models"
)

// FetchManifest reads and validates the manifest at locator.
func FetchManifest(ctx context.Context, f Fetcher, locator string) (models.Manifest, error) {
	b, err := f.Fetch(ctx, locator)
	if err != nil {
		return models.Manifest{}, &ManifestError{Kind: ErrManifestFetch, Locator: locator, Err: err}
	}
	return ParseManifest(b, locator)
}

// ParseManifest decodes a manifest document and enforces its shape: a
// storage key and at least one source. Source entries are trimmed but
// otherwise left for the loader to judge.
func ParseManifest(b []byte, locator string) (models.Manifest, error) {
	var m models.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return models.Manifest{}, &ManifestError{Kind: ErrManifestShape, Locator: locator, Reason: "invalid json", Err: err}
	}

	m.StorageKey = strings.TrimSpace(m.StorageKey)
	if m.StorageKey == "" {
		return models.Manifest{}, &ManifestError{Kind: ErrManifestShape, Locator: locator, Reason: "storageKey is required"}
	}
	if len(m.Sources) == 0 {
		return models.Manifest{}, &ManifestError{Kind: ErrManifestShape, Locator: locator, Reason: "sources must not be empty"}
	}

	switch strings.ToLower(strings.TrimSpace(m.IdentityScheme)) {
	case "", models.IdentityNamespaced:
		m.IdentityScheme = models.IdentityNamespaced
	case models.IdentityLocal:
		m.IdentityScheme = models.IdentityLocal
	default:
		return models.Manifest{}, &ManifestError{Kind: ErrManifestShape, Locator: locator, Reason: "unknown identityScheme " + m.IdentityScheme}
	}

	legacy := make([]string, 0, len(m.LegacyStorageKeys))
	seen := map[string]bool{m.StorageKey: true}
	for _, k := range m.LegacyStorageKeys {
		if k = strings.TrimSpace(k); k != "" && !seen[k] {
			seen[k] = true
			legacy = append(legacy, k)
		}
	}
	m.LegacyStorageKeys = legacy

	for i := range m.Sources {
		s := &m.Sources[i]
		s.ID = strings.TrimSpace(s.ID)
		s.CardsLocator = strings.TrimSpace(s.CardsLocator)
		s.HomeLocator = strings.TrimSpace(s.HomeLocator)
		s.Title = s.DisplayTitle()
	}
	return m, nil
}
