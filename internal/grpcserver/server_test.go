package grpcserver

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"cardhub/internal/catalog"
	"cardhub/internal/ownership"
	"cardhub/pkg/models"
)

type env struct {
	dir  string
	svc  *catalog.Service
	conn *grpc.ClientConn
}

func newEnv(t *testing.T, load bool) *env {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("cards-manifest.json", `{"storageKey":"k","sources":[{"id":"a","title":"Set A","cardsCsv":"a.csv"}]}`)
	write("a.csv", "id,rarity,name\na:1,5,Fox\na:2,1,Owl\nbad,1,Bad\n")

	store := ownership.NewStore(ownership.NewMemoryKV(), nil)
	require.NoError(t, store.Save(context.Background(), "k", models.OwnershipMap{"a:2": 1}))
	svc := catalog.NewService(catalog.Options{
		ManifestLocator: filepath.Join(dir, "cards-manifest.json"),
		Store:           store,
	})
	if load {
		_, err := svc.Reload(context.Background())
		require.NoError(t, err)
	}

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	Register(gs, NewServer(svc, false, "ja"))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &env{dir: dir, svc: svc, conn: conn}
}

func (e *env) invoke(method string, req, resp any) error {
	return e.conn.Invoke(context.Background(), FullMethod(method), req, resp)
}

func TestQuery(t *testing.T) {
	e := newEnv(t, true)

	var resp QueryResponse
	require.NoError(t, e.invoke("Query", &QueryRequest{Order: catalog.OrderProgress}, &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, catalog.Stats{TotalCards: 3, OwnedCards: 1}, resp.Stats)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "a:2", resp.Items[0].Identity)
	assert.Equal(t, "Owl", resp.Items[0].Name)
	assert.True(t, resp.Items[1].Masked)
	assert.Empty(t, resp.Items[1].Name)

	preview := true
	resp = QueryResponse{}
	require.NoError(t, e.invoke("Query", &QueryRequest{Q: "fox", Preview: &preview}, &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Fox", resp.Items[0].Name)
	assert.Equal(t, 0, resp.Items[0].RealCount)

	resp = QueryResponse{}
	require.NoError(t, e.invoke("Query", &QueryRequest{Ownership: "owned"}, &resp))
	assert.Equal(t, 1, resp.Total)

	err := e.invoke("Query", &QueryRequest{Order: "random"}, &QueryResponse{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStatsAndDiagnostics(t *testing.T) {
	e := newEnv(t, true)

	var stats StatsResponse
	require.NoError(t, e.invoke("Stats", &StatsRequest{}, &stats))
	assert.True(t, stats.Persistent)
	require.Len(t, stats.Sources, 1)
	assert.Equal(t, "Set A", stats.Sources[0].Source.Title)

	var diags DiagnosticsResponse
	require.NoError(t, e.invoke("Diagnostics", &DiagnosticsRequest{}, &diags))
	require.Len(t, diags.Items, 1)
	assert.Equal(t, catalog.KindMalformedIdentity, diags.Items[0].Kind)
	assert.Empty(t, diags.LastError)
}

func TestReload(t *testing.T) {
	e := newEnv(t, true)

	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "a.csv"), []byte("id\na:1\n"), 0o644))
	var resp ReloadResponse
	require.NoError(t, e.invoke("Reload", &ReloadRequest{}, &resp))
	assert.Equal(t, 1, resp.Stats.TotalCards)
	assert.Equal(t, 0, resp.Diagnostics)

	require.NoError(t, os.Remove(filepath.Join(e.dir, "cards-manifest.json")))
	err := e.invoke("Reload", &ReloadRequest{}, &ReloadResponse{})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	var diags DiagnosticsResponse
	require.NoError(t, e.invoke("Diagnostics", &DiagnosticsRequest{}, &diags))
	assert.Contains(t, diags.LastError, "manifest fetch failed")
	assert.Equal(t, resp.Generation, diags.Generation)
}

func TestNotLoadedIsUnavailable(t *testing.T) {
	e := newEnv(t, false)

	err := e.invoke("Query", &QueryRequest{}, &QueryResponse{})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	err = e.invoke("Stats", &StatsRequest{}, &StatsResponse{})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	var diags DiagnosticsResponse
	require.NoError(t, e.invoke("Diagnostics", &DiagnosticsRequest{}, &diags))
	assert.Empty(t, diags.Items)
}
