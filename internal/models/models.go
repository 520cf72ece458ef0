// Package models provides model discovery against an OpenAI-compatible API.
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Info describes a single model from the {base}/models endpoint.
type Info struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// listResponse is the response from {base}/models.
type listResponse struct {
	Data []Info `json:"data"`
}

// Manager fetches and caches the list of models an endpoint serves. The
// base URL follows the pool convention and already includes any version
// prefix (e.g. "http://127.0.0.1:8080/v1").
type Manager struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu     sync.Mutex
	cached []Info
}

// NewManager creates a Manager for the given API endpoint.
func NewManager(baseURL, apiKey string) *Manager {
	return &Manager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
}

// List returns the available models, fetching from the API if not cached.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		return m.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result listResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}

	m.cached = result.Data
	return m.cached, nil
}

// Invalidate clears the cached model list.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
}

// Has reports whether the given model ID is served by the endpoint.
func (m *Manager) Has(ctx context.Context, modelID string) (bool, error) {
	models, err := m.List(ctx)
	if err != nil {
		return false, err
	}
	for _, model := range models {
		if model.ID == modelID {
			return true, nil
		}
	}
	return false, nil
}

// Verify returns an error naming the available models when modelID is not
// served by the endpoint. Intended as a preflight check before a run.
func (m *Manager) Verify(ctx context.Context, modelID string) error {
	ok, err := m.Has(ctx, modelID)
	if err != nil {
		return err
	}
	if !ok {
		available, _ := m.List(ctx)
		ids := make([]string, len(available))
		for i, info := range available {
			ids[i] = info.ID
		}
		return fmt.Errorf("model %q not served by endpoint (available: %s)", modelID, strings.Join(ids, ", "))
	}
	return nil
}
