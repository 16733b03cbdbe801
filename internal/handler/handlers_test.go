package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HibiscusGuard/internal/session"
	"HibiscusGuard/internal/surface"
	"HibiscusGuard/pkg/config"
)

func newTestRouter(t *testing.T) (*session.Session, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sfc := surface.NewSSESurface(time.Second)
	s, err := session.New(&config.Config{SessionDSN: filepath.Join(t.TempDir(), "session.db")}, sfc)
	require.NoError(t, err)
	t.Cleanup(func() { s.Tokens().Close() })

	r := gin.New()
	New(s, sfc).RegisterRoutes(r, prometheus.NewRegistry())
	return s, r
}

func TestStartTrackingUnavailableIsConflict(t *testing.T) {
	// 未配置静态坐标时定位源不可用，属于定位类失败而非内部错误
	_, r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tracking/start", nil))

	assert.Equal(t, http.StatusConflict, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "error")
	assert.Contains(t, body, "permission")
}

func TestStateReportsConnectionError(t *testing.T) {
	s, r := newTestRouter(t)

	// 无效端点在拨号前即失败，错误应保留在状态快照里
	err := s.Connection().Connect("://bad-endpoint", "tok")
	require.Error(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/state", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "connection_error")
	assert.Equal(t, "error", body["connection"])
}
