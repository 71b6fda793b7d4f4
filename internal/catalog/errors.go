package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestFetch is wrapped by every failure to obtain the manifest document.
	ErrManifestFetch = errors.New("manifest fetch failed")
	// ErrManifestShape is wrapped when the manifest decodes but is unusable.
	ErrManifestShape = errors.New("manifest shape invalid")
	// ErrUnknownCard is returned when an ownership mutation names an identity
	// the current catalog does not contain.
	ErrUnknownCard = errors.New("unknown card")
	// ErrNotLoaded is returned by operations that need a committed snapshot.
	ErrNotLoaded = errors.New("catalog not loaded")
)

// ManifestError is fatal to one load cycle. Kind is ErrManifestFetch or
// ErrManifestShape.
type ManifestError struct {
	Kind    error
	Locator string
	Reason  string
	Err     error
}

func (e *ManifestError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Locator)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ManifestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// SourceLoadError records the fetch or parse failure of one source. It never
// escapes a load cycle; it is carried inside a Diagnostic.
type SourceLoadError struct {
	SourceID string
	Locator  string
	Err      error
}

func (e *SourceLoadError) Error() string {
	return fmt.Sprintf("load source %s (%s): %v", e.SourceID, e.Locator, e.Err)
}

func (e *SourceLoadError) Unwrap() error { return e.Err }

// ErrSuperseded is returned by a reload that finished after a newer reload
// had already been committed; its result is discarded.
var ErrSuperseded = errors.New("reload superseded by a newer load cycle")
