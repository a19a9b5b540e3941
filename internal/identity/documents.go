package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default document fetch settings.
const (
	DefaultIPFSGateway     = "https://ipfs.io/ipfs/"
	DefaultDocumentTimeout = 10 * time.Second
	maxDocumentBytes       = 1 << 20
)

// DocumentFetcher fetches off-chain metadata documents.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, uri string) ([]byte, error)
}

// HTTPDocumentFetcher fetches documents over HTTP and rewrites ipfs:// URIs to a gateway.
type HTTPDocumentFetcher struct {
	client  *http.Client
	gateway string
}

var _ DocumentFetcher = (*HTTPDocumentFetcher)(nil)

// NewHTTPDocumentFetcher creates a fetcher. Empty gateway uses DefaultIPFSGateway.
func NewHTTPDocumentFetcher(client *http.Client, gateway string) *HTTPDocumentFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultDocumentTimeout}
	}
	if gateway == "" {
		gateway = DefaultIPFSGateway
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &HTTPDocumentFetcher{client: client, gateway: gateway}
}

// FetchDocument returns the body of uri, capped at 1 MiB.
func (f *HTTPDocumentFetcher) FetchDocument(ctx context.Context, uri string) ([]byte, error) {
	target := f.resolve(uri)
	if target == "" {
		return nil, fmt.Errorf("unsupported metadata uri %q", uri)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch document: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return body, nil
}

func (f *HTTPDocumentFetcher) resolve(uri string) string {
	uri = strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		return f.gateway + strings.TrimPrefix(strings.TrimPrefix(uri, "ipfs://"), "ipfs/")
	case strings.HasPrefix(uri, "https://"), strings.HasPrefix(uri, "http://"):
		return uri
	default:
		return ""
	}
}
