package models

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	resp := listResponse{
		Data: []Info{
			{ID: "qwen3-32b", Object: "model", OwnedBy: "local"},
			{ID: "llama-3.1-8b", Object: "model", OwnedBy: "local"},
		},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestList(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	mgr := NewManager(srv.URL+"/v1", "key")
	models, err := mgr.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 2)
	assert.Equal(t, "qwen3-32b", models[0].ID)
}

func TestListCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(listResponse{Data: []Info{{ID: "m1"}}})
	}))
	defer srv.Close()

	mgr := NewManager(srv.URL, "")
	_, _ = mgr.List(context.Background())
	_, _ = mgr.List(context.Background())
	assert.Equal(t, 1, calls)
}

func TestInvalidate(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(listResponse{Data: []Info{{ID: "m1"}}})
	}))
	defer srv.Close()

	mgr := NewManager(srv.URL, "")
	_, _ = mgr.List(context.Background())
	mgr.Invalidate()
	_, _ = mgr.List(context.Background())
	assert.Equal(t, 2, calls)
}

func TestVerify(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	mgr := NewManager(srv.URL+"/v1", "key")
	require.NoError(t, mgr.Verify(context.Background(), "qwen3-32b"))

	err := mgr.Verify(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qwen3-32b")
}
