package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// RemoteClient is the narrow contract the cache needs from a remote
// artifact store. Absent entries are ErrMiss, not errors.
type RemoteClient interface {
	Exists(ctx context.Context, hash string) (bool, error)
	Get(ctx context.Context, hash string) (io.ReadCloser, error)
	Put(ctx context.Context, hash string, body io.Reader) error
}

// HTTPClient talks to a remote artifact store over HTTP: artifacts
// live at <base>/v1/artifacts/<hash> with bearer-token auth.
type HTTPClient struct {
	base  string
	token string
	http  *http.Client
}

// NewHTTPClient creates a remote client for the given base URL.
func NewHTTPClient(base, token string) *HTTPClient {
	return &HTTPClient{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPClient) url(hash string) string {
	return fmt.Sprintf("%s/v1/artifacts/%s", c.base, hash)
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func (c *HTTPClient) Exists(ctx context.Context, hash string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url(hash), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("remote cache: unexpected status %d", resp.StatusCode)
}

func (c *HTTPClient) Get(ctx context.Context, hash string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(hash), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrMiss
	}
	resp.Body.Close()
	return nil, fmt.Errorf("remote cache: unexpected status %d", resp.StatusCode)
}

func (c *HTTPClient) Put(ctx context.Context, hash string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url(hash), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("remote cache: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// MemoryClient is an in-process RemoteClient for tests.
type MemoryClient struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailPuts makes every Put error, for degradation tests.
	FailPuts bool
}

// NewMemoryClient creates an empty in-memory remote store.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{data: make(map[string][]byte)}
}

func (m *MemoryClient) Exists(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[hash]
	return ok, nil
}

func (m *MemoryClient) Get(ctx context.Context, hash string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[hash]
	if !ok {
		return nil, ErrMiss
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryClient) Put(ctx context.Context, hash string, body io.Reader) error {
	if m.FailPuts {
		return fmt.Errorf("remote store unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[hash] = data
	return nil
}

// Len returns the number of stored artifacts.
func (m *MemoryClient) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
