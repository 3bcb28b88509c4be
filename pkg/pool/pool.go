// Package pool manages the TLS-capable connection pool shared by all
// tasks of a fetcher instance.
package pool

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// DefaultKeepAliveTimeout bounds how long an owned pool keeps idle
// connections around for reuse.
const DefaultKeepAliveTimeout = 90 * time.Second

// Config holds the settings for an owned connection pool.
type Config struct {
	// CAFile optionally points at a PEM bundle appended to the system
	// root CAs.
	CAFile string

	// KeepAliveTimeout overrides DefaultKeepAliveTimeout when positive.
	KeepAliveTimeout time.Duration
}

// Manager owns or borrows a single *http.Transport, Go's connection
// pool. An owned transport is created lazily on first Acquire and torn
// down by Close. A borrowed transport is returned unchanged, is never
// closed by the manager, and outlives it. The mode is fixed at
// construction.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	owned     bool
	transport *http.Transport
	closed    bool
}

// NewManager returns a manager that owns its transport.
func NewManager(cfg Config) *Manager {
	if cfg.KeepAliveTimeout <= 0 {
		cfg.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	return &Manager{cfg: cfg, owned: true}
}

// Borrow returns a manager around an externally supplied transport.
func Borrow(transport *http.Transport) *Manager {
	return &Manager{transport: transport}
}

// Owned reports whether the manager owns its transport.
func (m *Manager) Owned() bool {
	return m.owned
}

// Acquire returns the pooled transport. For an owned manager the
// transport is created on first use, memoized, and recreated after a
// Close. A borrowed manager always returns the supplied transport
// unchanged.
func (m *Manager) Acquire() (*http.Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.owned {
		return m.transport, nil
	}
	if m.transport != nil && !m.closed {
		return m.transport, nil
	}

	tlsCfg, err := newTLSConfig(m.cfg.CAFile)
	if err != nil {
		return nil, err
	}
	m.transport = &http.Transport{
		TLSClientConfig:   tlsCfg,
		IdleConnTimeout:   m.cfg.KeepAliveTimeout,
		ForceAttemptHTTP2: true,
	}
	m.closed = false
	return m.transport, nil
}

// Close releases the owned transport's connections. Closing twice is
// safe; closing a borrowed manager is a no-op.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.owned || m.closed {
		return
	}
	if m.transport != nil {
		m.transport.CloseIdleConnections()
	}
	m.closed = true
}

// Closed reports whether an owned transport has been closed. A
// borrowed manager never reports closed.
func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// newTLSConfig builds the TLS client configuration for an owned
// transport. Without a CA file the transport falls back to the system
// roots via a nil config.
func newTLSConfig(caFile string) (*tls.Config, error) {
	if caFile == "" {
		return nil, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca file %s contains no valid certificates", caFile)
	}
	return &tls.Config{RootCAs: roots}, nil
}
