package grpcserver

import "cardhub/internal/catalog"

type QueryRequest struct {
	Q         string `json:"q"`
	Source    string `json:"source"`
	Ownership string `json:"ownership"`
	Order     string `json:"order"`
	Locale    string `json:"locale"`
	Preview   *bool  `json:"preview,omitempty"`
}

type QueryResponse struct {
	Generation string               `json:"generation"`
	Total      int                  `json:"total"`
	Stats      catalog.Stats        `json:"stats"`
	Items      []catalog.Projection `json:"items"`
}

type StatsRequest struct{}

type StatsResponse struct {
	Generation string                `json:"generation"`
	Persistent bool                  `json:"persistent"`
	Stats      catalog.Stats         `json:"stats"`
	Sources    []catalog.SourceCards `json:"sources"`
}

type DiagnosticsRequest struct{}

type DiagnosticsResponse struct {
	Generation string               `json:"generation"`
	Items      []catalog.Diagnostic `json:"items"`
	LastError  string               `json:"last_error,omitempty"`
}

type ReloadRequest struct{}

type ReloadResponse struct {
	Generation  string        `json:"generation"`
	Stats       catalog.Stats `json:"stats"`
	Diagnostics int           `json:"diagnostics"`
}
