package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"cardhub/internal/catalog"
)

// CatalogServer is the gRPC face of a catalog.Service.
type CatalogServer interface {
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
	Diagnostics(context.Context, *DiagnosticsRequest) (*DiagnosticsResponse, error)
	Reload(context.Context, *ReloadRequest) (*ReloadResponse, error)
}

type Server struct {
	Service *catalog.Service
	Preview bool
	Locale  string
}

func NewServer(svc *catalog.Service, preview bool, locale string) *Server {
	return &Server{Service: svc, Preview: preview, Locale: locale}
}

// Register attaches the catalog service to gs.
func Register(gs *grpc.Server, srv CatalogServer) {
	gs.RegisterService(&ServiceDesc, srv)
}

func (s *Server) snapshot() (*catalog.Snapshot, error) {
	snap := s.Service.Snapshot()
	if snap == nil {
		return nil, status.Error(codes.Unavailable, "catalog not loaded")
	}
	return snap, nil
}

func (s *Server) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	q := catalog.Query{
		Text:      req.Q,
		Source:    req.Source,
		Ownership: req.Ownership,
		Order:     req.Order,
		Locale:    req.Locale,
	}
	if q.Locale == "" {
		q.Locale = s.Locale
	}
	if err := q.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	preview := s.Preview
	if req.Preview != nil {
		preview = *req.Preview
	}

	cards := catalog.Run(snap.Catalog, snap.Ownership, q)
	return &QueryResponse{
		Generation: snap.Generation,
		Total:      len(cards),
		Stats:      snap.Catalog.Stats(),
		Items:      catalog.ProjectAll(cards, snap.Ownership, preview),
	}, nil
}

func (s *Server) Stats(ctx context.Context, _ *StatsRequest) (*StatsResponse, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return &StatsResponse{
		Generation: snap.Generation,
		Persistent: snap.Persistent,
		Stats:      snap.Catalog.Stats(),
		Sources:    snap.Catalog.Sources(),
	}, nil
}

func (s *Server) Diagnostics(ctx context.Context, _ *DiagnosticsRequest) (*DiagnosticsResponse, error) {
	resp := &DiagnosticsResponse{Items: []catalog.Diagnostic{}}
	if snap := s.Service.Snapshot(); snap != nil {
		resp.Generation = snap.Generation
		resp.Items = snap.Diagnostics
	}
	if _, err := s.Service.LastFailure(); err != nil {
		resp.LastError = err.Error()
	}
	return resp, nil
}

func (s *Server) Reload(ctx context.Context, _ *ReloadRequest) (*ReloadResponse, error) {
	snap, err := s.Service.Reload(ctx)
	switch {
	case errors.Is(err, catalog.ErrSuperseded):
		return nil, status.Error(codes.Aborted, err.Error())
	case catalog.IsFatal(err):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &ReloadResponse{
		Generation:  snap.Generation,
		Stats:       snap.Catalog.Stats(),
		Diagnostics: len(snap.Diagnostics),
	}, nil
}
