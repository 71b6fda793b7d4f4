package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxDocumentBytes bounds one manifest or CSV document.
const maxDocumentBytes = 8 << 20

// Fetcher turns an opaque locator into raw document bytes.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// LocatorFetcher resolves locators against Base (the manifest's own
// locator) and reads them over HTTP(S) or from the local filesystem.
type LocatorFetcher struct {
	Base   string
	Client *http.Client
}

func NewLocatorFetcher(base string) *LocatorFetcher {
	return &LocatorFetcher{
		Base: base,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (f *LocatorFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	target := f.Resolve(locator)
	if isHTTP(target) {
		return f.fetchHTTP(ctx, target)
	}
	return f.fetchFile(ctx, target)
}

// Resolve returns the absolute form of locator. Relative locators are
// resolved against the directory of Base.
func (f *LocatorFetcher) Resolve(locator string) string {
	locator = strings.TrimSpace(locator)
	if isHTTP(locator) {
		return locator
	}
	if p, ok := strings.CutPrefix(locator, "file://"); ok {
		return p
	}

	base := strings.TrimSpace(f.Base)
	if base == "" || filepath.IsAbs(locator) {
		return locator
	}
	if isHTTP(base) {
		bu, err := url.Parse(base)
		if err != nil {
			return locator
		}
		ref, err := url.Parse(locator)
		if err != nil {
			return locator
		}
		return bu.ResolveReference(ref).String()
	}
	base = strings.TrimPrefix(base, "file://")
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(locator))
}

func (f *LocatorFetcher) fetchHTTP(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(b) > maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}
	return b, nil
}

func (f *LocatorFetcher) fetchFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}
	return os.ReadFile(path)
}

func isHTTP(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
