package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/penne-app/penne/internal/errors"
	"github.com/penne-app/penne/internal/remote"
)

// MockClient is a mock backend client for testing. Relational calls are
// delegated to a backing store (usually an in-memory sqlite repository);
// storage objects are served from a map.
type MockClient struct {
	remote.Store

	baseURL     string
	objects     map[string][]byte
	downloadErr error
	callErr     error

	mu        sync.Mutex
	downloads []string
	tokens    []string
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithStore sets the store relational calls are delegated to
func WithStore(store remote.Store) MockOption {
	return func(m *MockClient) {
		m.Store = store
	}
}

// WithObject adds a storage object at bucket/path
func WithObject(bucket, path string, data []byte) MockOption {
	return func(m *MockClient) {
		m.objects[bucket+"/"+strings.TrimLeft(path, "/")] = data
	}
}

// WithDownloadError sets an error to return from Download
func WithDownloadError(err error) MockOption {
	return func(m *MockClient) {
		m.downloadErr = err
	}
}

// WithCallError sets an error to return from Call
func WithCallError(err error) MockOption {
	return func(m *MockClient) {
		m.callErr = err
	}
}

// WithBaseURL sets the base URL to return
func WithBaseURL(url string) MockOption {
	return func(m *MockClient) {
		m.baseURL = url
	}
}

// NewMockClient creates a new mock client with options
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		baseURL: "http://mock-backend",
		objects: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BaseURL returns the mock base URL
func (m *MockClient) BaseURL() string {
	return m.baseURL
}

// Call records the caller's token and delegates to the backing store
func (m *MockClient) Call(ctx context.Context, fn string, args remote.Record) error {
	m.mu.Lock()
	m.tokens = append(m.tokens, remote.AccessToken(ctx))
	m.mu.Unlock()
	if m.callErr != nil {
		return m.callErr
	}
	if m.Store == nil {
		return fmt.Errorf("mock backend has no store")
	}
	return m.Store.Call(ctx, fn, args)
}

// Download returns the object stored at bucket/path
func (m *MockClient) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	key := bucket + "/" + strings.TrimLeft(path, "/")
	m.mu.Lock()
	m.downloads = append(m.downloads, key)
	m.mu.Unlock()
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.NotFoundf("object %s not found", key)
	}
	return data, nil
}

// Downloads returns the keys requested from Download, in order
func (m *MockClient) Downloads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.downloads...)
}

// Tokens returns the access tokens seen by Call, in order
func (m *MockClient) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)
