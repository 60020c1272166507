package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// idleEvictTimeout and sweepInterval mirror the teacher's compaction-manager
// idle-detection shape (per-key timer reset on activity, backstop periodic
// sweep) adapted from bundle compaction to bundle eviction: a repo bundle
// idle for idleEvictTimeout is dropped from the multiplexer. Eviction does
// not close the bundle's stores; the Bundle type has no Close method.
const (
	idleEvictTimeout = 30 * time.Minute
	sweepInterval    = 5 * time.Minute
)

// BundleFactory lazily constructs a Bundle for a repo key (the "/org/repo"
// path segment after the mount prefix) the first time it's requested.
type BundleFactory func(ctx context.Context, repoKey string) (*Bundle, error)

// bundleEntry tracks one multiplexed bundle's liveness.
type bundleEntry struct {
	bundle     *Bundle
	server     *Server
	lastActive time.Time
	idleTimer  *time.Timer
}

// Multiplexer serves tool-call requests for an arbitrary number of
// repositories behind one HTTP listener, keyed by URL path. Each repo gets
// its own lazily-built Bundle, evicted after idleEvictTimeout with no
// requests; a periodic sweep catches anything an idle timer missed (e.g. a
// process restart mid-timer).
type Multiplexer struct {
	factory BundleFactory
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*bundleEntry

	stopSweep chan struct{}
}

// NewMultiplexer creates a Multiplexer. Call Close when the HTTP server
// shuts down to stop the sweep goroutine and drop every tracked bundle.
func NewMultiplexer(factory BundleFactory, logger *slog.Logger) *Multiplexer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Multiplexer{
		factory:   factory,
		logger:    logger,
		entries:   make(map[string]*bundleEntry),
		stopSweep: make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *Multiplexer) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopSweep:
			return
		}
	}
}

func (m *Multiplexer) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-idleEvictTimeout)
	for key, entry := range m.entries {
		if entry.lastActive.Before(cutoff) {
			m.evictLocked(key)
		}
	}
}

// evictLocked removes and stops tracking the bundle at key. Caller must hold
// m.mu.
func (m *Multiplexer) evictLocked(key string) {
	entry, ok := m.entries[key]
	if !ok {
		return
	}
	if entry.idleTimer != nil {
		entry.idleTimer.Stop()
	}
	delete(m.entries, key)
	m.logger.Info("evicted idle bundle", slog.String("repo", key))
}

// repoKey extracts the "/org/repo"-shaped key from a request path mounted
// under prefix, e.g. "/mcp/acme/widgets/tools/call" -> "acme/widgets" when
// prefix is "/mcp".
func repoKey(prefix, urlPath string) string {
	rest := strings.TrimPrefix(urlPath, prefix)
	rest = strings.TrimPrefix(rest, "/")
	segs := strings.Split(rest, "/")
	if len(segs) < 2 {
		return rest
	}
	return segs[0] + "/" + segs[1]
}

func (m *Multiplexer) getOrBuild(ctx context.Context, key string) (*Server, error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok {
		entry.lastActive = time.Now()
		if entry.idleTimer != nil {
			entry.idleTimer.Stop()
		}
		entry.idleTimer = time.AfterFunc(idleEvictTimeout, func() { m.onIdle(key) })
		m.mu.Unlock()
		return entry.server, nil
	}
	m.mu.Unlock()

	bundle, err := m.factory(ctx, key)
	if err != nil {
		return nil, err
	}
	server := NewServer(bundle, m.logger.With(slog.String("repo", key)))

	m.mu.Lock()
	defer m.mu.Unlock()
	entry = &bundleEntry{bundle: bundle, server: server, lastActive: time.Now()}
	entry.idleTimer = time.AfterFunc(idleEvictTimeout, func() { m.onIdle(key) })
	m.entries[key] = entry
	m.logger.Info("built bundle", slog.String("repo", key))
	return server, nil
}

func (m *Multiplexer) onIdle(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(key)
}

// Close stops the sweep loop and drops every tracked bundle.
func (m *Multiplexer) Close() {
	close(m.stopSweep)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		m.evictLocked(key)
	}
}

// ServeHTTP implements http.Handler. It expects POST requests carrying a
// single JSON-RPC request body at <prefix>/<org>/<repo>/rpc.
func (m *Multiplexer) ServeHTTP(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		key := repoKey(prefix, r.URL.Path)
		if key == "" {
			http.Error(w, "missing repo path", http.StatusBadRequest)
			return
		}

		server, err := m.getOrBuild(r.Context(), key)
		if err != nil {
			http.Error(w, "failed to initialize bundle: "+err.Error(), http.StatusInternalServerError)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if len(body) > maxRequestBytes {
			http.Error(w, "request exceeds 10MiB limit", http.StatusRequestEntityTooLarge)
			return
		}

		resp, err := server.HandleMessage(r.Context(), body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write(resp)
	})
}
