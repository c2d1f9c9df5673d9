package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestDocumentListsPublicRoutes(t *testing.T) {
	doc, err := swag.ReadDoc()
	require.NoError(t, err)

	var parsed struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	assert.Equal(t, "/api", parsed.BasePath)

	routes := map[string][]string{
		"/health":                {"get"},
		"/published":             {"get"},
		"/admin/login":           {"post"},
		"/admin/logout":          {"post"},
		"/admin/feature-flags":   {"get"},
		"/submissions/submit":    {"post"},
		"/submissions/published": {"get"},
		"/submissions":           {"get"},
		"/submissions/stats":     {"get"},
		"/submissions/reconcile": {"post"},
		"/submissions/{id}":      {"get", "patch", "delete"},
		"/ws/ticket":             {"post"},
	}
	for path, methods := range routes {
		ops, ok := parsed.Paths[path]
		if !assert.True(t, ok, path) {
			continue
		}
		for _, m := range methods {
			assert.Contains(t, ops, m, path)
		}
	}
}
