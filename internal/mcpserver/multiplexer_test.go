package mcpserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoKey_ExtractsOrgRepoSegment(t *testing.T) {
	assert.Equal(t, "acme/widgets", repoKey("/mcp", "/mcp/acme/widgets/rpc"))
	assert.Equal(t, "acme/widgets", repoKey("/mcp", "/mcp/acme/widgets"))
}

func TestMultiplexer_ReusesBundleAcrossRequests(t *testing.T) {
	builds := 0
	factory := func(_ context.Context, key string) (*Bundle, error) {
		builds++
		return newTestBundleForKey(t, key), nil
	}
	m := NewMultiplexer(factory, nil)
	t.Cleanup(m.Close)

	handler := m.ServeHTTP("/mcp")

	body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	req := httptest.NewRequest("POST", "/mcp/acme/widgets/rpc", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	body2 := strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	req2 := httptest.NewRequest("POST", "/mcp/acme/widgets/rpc", body2)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	require.Equal(t, 200, rec2.Code)

	assert.Equal(t, 1, builds, "second request to the same repo should reuse the bundle, not rebuild it")
}

func TestMultiplexer_RejectsNonPOST(t *testing.T) {
	factory := func(_ context.Context, key string) (*Bundle, error) {
		return newTestBundleForKey(t, key), nil
	}
	m := NewMultiplexer(factory, nil)
	t.Cleanup(m.Close)

	req := httptest.NewRequest("GET", "/mcp/acme/widgets/rpc", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP("/mcp").ServeHTTP(rec, req)
	assert.Equal(t, 405, rec.Code)
}

func newTestBundleForKey(t *testing.T, key string) *Bundle {
	t.Helper()
	b := newTestBundle(t)
	b.ProjectID = key
	return b
}
