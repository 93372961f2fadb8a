package envexplorer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/module"
)

// DefaultProxy is the public module proxy.
const DefaultProxy = "https://proxy.golang.org"

// Index tells whether a module version can be fetched by reference.
type Index interface {
	Exists(ctx context.Context, path, version string) (bool, error)
}

// ProxyIndex queries a GOPROXY-protocol server.
type ProxyIndex struct {
	BaseURL string
	Client  *http.Client
}

// NewProxyIndex returns an index backed by baseURL, or DefaultProxy when
// baseURL is empty.
func NewProxyIndex(baseURL string) *ProxyIndex {
	if baseURL == "" {
		baseURL = DefaultProxy
	}
	return &ProxyIndex{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *ProxyIndex) Exists(ctx context.Context, path, version string) (bool, error) {
	escPath, err := module.EscapePath(path)
	if err != nil {
		return false, err
	}
	escVersion, err := module.EscapeVersion(version)
	if err != nil {
		return false, err
	}
	url := fmt.Sprintf("%s/%s/@v/%s.info", p.BaseURL, escPath, escVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound, http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("module proxy returned %s for %s@%s", resp.Status, path, version)
	}
}
