package catalog

import "fmt"

// DiagnosticKind classifies a non-fatal defect found during one load cycle.
type DiagnosticKind string

const (
	KindSourceLoad        DiagnosticKind = "source_load"
	KindSourceSkipped     DiagnosticKind = "source_skipped"
	KindMalformedIdentity DiagnosticKind = "malformed_identity"
	KindDuplicateIdentity DiagnosticKind = "duplicate_identity"
)

// Diagnostic is one entry of the per-cycle report. Diagnostics are additive:
// they never remove cards that did load.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	SourceID string         `json:"source_id,omitempty"`
	Identity string         `json:"identity,omitempty"`
	Count    int            `json:"count,omitempty"`
	Message  string         `json:"message"`
	Err      error          `json:"-"`
}

func sourceLoadDiagnostic(err *SourceLoadError) Diagnostic {
	return Diagnostic{
		Kind:     KindSourceLoad,
		SourceID: err.SourceID,
		Message:  err.Error(),
		Err:      err,
	}
}

func sourceSkippedDiagnostic(index int, id, reason string) Diagnostic {
	return Diagnostic{
		Kind:     KindSourceSkipped,
		SourceID: id,
		Message:  fmt.Sprintf("manifest source #%d skipped: %s", index, reason),
	}
}

func malformedIdentityDiagnostic(identity, sourceID string) Diagnostic {
	return Diagnostic{
		Kind:     KindMalformedIdentity,
		SourceID: sourceID,
		Identity: identity,
		Message:  fmt.Sprintf("identity %q is not of the form namespace:code", identity),
	}
}

func duplicateIdentityDiagnostic(identity string, count int, sourceIDs []string) Diagnostic {
	return Diagnostic{
		Kind:     KindDuplicateIdentity,
		SourceID: sourceIDs[0],
		Identity: identity,
		Count:    count,
		Message:  fmt.Sprintf("identity %q appears %d times (sources %v); keeping the first", identity, count, sourceIDs),
	}
}

// CountKind returns how many diagnostics of the given kind are present.
func CountKind(diags []Diagnostic, kind DiagnosticKind) int {
	n := 0
	for _, d := range diags {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
