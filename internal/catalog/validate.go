package catalog

import (
	"strings"

	"cardhub/pkg/models"
)

// ValidIdentity reports whether identity is structurally sound. Under the
// namespaced scheme it must be "namespace:code" with exactly one separator
// and both halves non-empty.
func ValidIdentity(identity string, namespaced bool) bool {
	if identity == "" {
		return false
	}
	if !namespaced {
		return true
	}
	ns, code, ok := strings.Cut(identity, ":")
	if !ok || strings.Contains(code, ":") {
		return false
	}
	return strings.TrimSpace(ns) != "" && strings.TrimSpace(code) != ""
}

// ValidateIdentities scans the merged card sequence once and reports
// malformed and duplicate identities. The cards are not modified; the
// diagnostics keep first-seen order.
func ValidateIdentities(cards []models.Card, namespaced bool) []Diagnostic {
	var diags []Diagnostic

	type seenID struct {
		count   int
		sources []string
	}
	order := make([]string, 0, len(cards))
	seen := make(map[string]*seenID, len(cards))

	for _, c := range cards {
		if !ValidIdentity(c.Identity, namespaced) {
			diags = append(diags, malformedIdentityDiagnostic(c.Identity, c.SourceID))
		}

		s, ok := seen[c.Identity]
		if !ok {
			s = &seenID{}
			seen[c.Identity] = s
			order = append(order, c.Identity)
		}
		s.count++
		s.sources = append(s.sources, c.SourceID)
	}

	for _, id := range order {
		if s := seen[id]; s.count >= 2 {
			diags = append(diags, duplicateIdentityDiagnostic(id, s.count, s.sources))
		}
	}
	return diags
}
