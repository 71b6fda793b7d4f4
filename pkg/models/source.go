package models

import "strings"

const (
	IdentityNamespaced = "namespaced"
	IdentityLocal      = "local"
)

// Source is one independently authored contributor of cards.
type Source struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CardsLocator string `json:"cardsCsv"`
	HomeLocator  string `json:"home,omitempty"`
}

// DisplayTitle falls back to the id when the manifest leaves title blank.
func (s Source) DisplayTitle() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return s.ID
}

// Manifest is the declarative root of a load cycle.
type Manifest struct {
	StorageKey        string   `json:"storageKey"`
	LegacyStorageKeys []string `json:"legacyStorageKeys,omitempty"`
	IdentityScheme    string   `json:"identityScheme,omitempty"`
	Sources           []Source `json:"sources"`
}

// Namespaced reports whether identities must look like "namespace:code".
func (m Manifest) Namespaced() bool {
	return strings.ToLower(strings.TrimSpace(m.IdentityScheme)) != IdentityLocal
}
