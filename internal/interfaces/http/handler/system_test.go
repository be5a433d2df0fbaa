package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/storefront/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping() error { return p.err }

func newSystemRouter(db Pinger) *gin.Engine {
	router := gin.New()
	h := NewSystemHandler("cartd", "1.2.3", db, nil)
	h.RegisterHealthRoutes(router)
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	w := httptest.NewRecorder()
	newSystemRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/info", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cartd", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
}

func TestSystemHandler_HealthRoutes(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		path   string
		status int
	}{
		{"health ignores the database", stubPinger{err: errors.New("down")}, "/health", http.StatusOK},
		{"ready without database", nil, "/ready", http.StatusOK},
		{"ready with healthy database", stubPinger{}, "/ready", http.StatusOK},
		{"not ready when ping fails", stubPinger{err: errors.New("down")}, "/ready", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newSystemRouter(tt.db).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
