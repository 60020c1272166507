package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcelens/sourcelens/internal/embed"
	"github.com/sourcelens/sourcelens/internal/memory"
	"github.com/sourcelens/sourcelens/internal/store"
)

func newTestBundle(t *testing.T) *Bundle {
	t.Helper()
	st, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mgr := memory.NewManager(st, embed.NewFakeEmbedder(16), "proj1")
	return &Bundle{
		ProjectID:  "proj1",
		Metadata:   st,
		Graph:      st,
		GraphEmbed: embed.NewFakeEmbedder(16),
		Memory:     mgr,
	}
}

func rawRequest(t *testing.T, method string, params any, id int) []byte {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		raw = b
	}
	req := Request{JSONRPC: "2.0", Method: method, Params: raw}
	if id != 0 {
		idBytes, err := json.Marshal(id)
		require.NoError(t, err)
		req.ID = idBytes
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return b
}

func TestServer_Initialize(t *testing.T) {
	s := NewServer(newTestBundle(t), nil)
	resp, err := s.HandleMessage(context.Background(), rawRequest(t, "initialize", nil, 1))
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(resp, &decoded))
	assert.Nil(t, decoded.Error)
	assert.NotNil(t, decoded.Result)
}

func TestServer_Ping(t *testing.T) {
	s := NewServer(newTestBundle(t), nil)
	resp, err := s.HandleMessage(context.Background(), rawRequest(t, "ping", nil, 1))
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(resp, &decoded))
	assert.Nil(t, decoded.Error)
}

func TestServer_ToolsList_IncludesAllCatalogTools(t *testing.T) {
	s := NewServer(newTestBundle(t), nil)
	resp, err := s.HandleMessage(context.Background(), rawRequest(t, "tools/list", nil, 1))
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []toolListing `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp, &decoded))
	assert.Len(t, decoded.Result.Tools, len(Catalog()))
}

func TestServer_UnknownMethod_ReturnsMethodNotFound(t *testing.T) {
	s := NewServer(newTestBundle(t), nil)
	resp, err := s.HandleMessage(context.Background(), rawRequest(t, "resources/list", nil, 1))
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(resp, &decoded))
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeMethodNotFound, decoded.Error.Code)
}

func TestServer_ToolsCall_UnknownTool(t *testing.T) {
	s := NewServer(newTestBundle(t), nil)
	resp, err := s.HandleMessage(context.Background(), rawRequest(t, "tools/call", map[string]any{
		"name": "does_not_exist", "arguments": map[string]any{},
	}, 1))
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(resp, &decoded))
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeMethodNotFound, decoded.Error.Code)
	require.NotNil(t, decoded.Error.Data)
	assert.Equal(t, "does_not_exist", decoded.Error.Data.Tool)
}

func TestServer_ToolsCall_Memorize_ThenRemember(t *testing.T) {
	s := NewServer(newTestBundle(t), nil)
	ctx := context.Background()

	memResp, err := s.HandleMessage(ctx, rawRequest(t, "tools/call", map[string]any{
		"name": "memorize",
		"arguments": map[string]any{
			"title":   "A decision worth keeping",
			"content": "We chose SQLite for the metadata store because it needs no server.",
		},
	}, 1))
	require.NoError(t, err)
	var memDecoded Response
	require.NoError(t, json.Unmarshal(memResp, &memDecoded))
	require.Nil(t, memDecoded.Error)

	rememberResp, err := s.HandleMessage(ctx, rawRequest(t, "tools/call", map[string]any{
		"name":      "remember",
		"arguments": map[string]any{"query": "SQLite metadata store decision"},
	}, 2))
	require.NoError(t, err)
	var rememberDecoded Response
	require.NoError(t, json.Unmarshal(rememberResp, &rememberDecoded))
	require.Nil(t, rememberDecoded.Error)
}

func TestServer_ToolsCall_MissingRequiredField(t *testing.T) {
	s := NewServer(newTestBundle(t), nil)
	resp, err := s.HandleMessage(context.Background(), rawRequest(t, "tools/call", map[string]any{
		"name":      "semantic_search",
		"arguments": map[string]any{},
	}, 1))
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(resp, &decoded))
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeInvalidParams, decoded.Error.Code)
}

func TestServer_Notification_NoResponse(t *testing.T) {
	s := NewServer(newTestBundle(t), nil)
	req := Request{JSONRPC: "2.0", Method: "ping"}
	b, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := s.HandleMessage(context.Background(), b)
	require.NoError(t, err)
	assert.Nil(t, resp)
}
