// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/ashgrove/historyd/internal/history"
	"github.com/ashgrove/historyd/internal/logging"
	"github.com/ashgrove/historyd/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, store.BackingStore) {
	t.Helper()
	st := store.NewHistoryStore(history.New(10), nil)
	t.Cleanup(func() { st.Close() })

	acl := NewACL(parseCIDRs(t, "127.0.0.1/32"))
	metrics := NewMetrics(func() int { return 0 }, st.TotalSize)
	return NewRouter(acl, metrics, st, logging.New("error", "json")), st
}

func TestRouterHealthz(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterDeniesDisallowedOrigin(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterMetricsExposesPrometheusFormat(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "historyd_store_size_bytes")
}

func TestRouterSnapshotGzipsStoreContents(t *testing.T) {
	router, st := newTestRouter(t)

	_, err := st.Append([]byte("hello\n"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer gz.Close()

	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))
}
