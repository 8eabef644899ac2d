// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tagrunner/internal/snippet"
)

func newTestService(t *testing.T, dir string) (*Service, snippet.Config) {
	t.Helper()
	scfg := snippet.Config{ContainerID: "GTM-ADMIN", Dir: dir, URIBase: "/tagrunner"}
	cache := snippet.NewCache(dir, scfg.URIBase)

	svc, err := NewService("127.0.0.1:0", cache, func() snippet.Config { return scfg })
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.listener.Close() })
	return svc, scfg
}

func TestHandleRebuild_Success(t *testing.T) {
	dir := t.TempDir()
	svc, scfg := newTestService(t, dir)

	rec := httptest.NewRecorder()
	svc.handleRebuild(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rebuild", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp rebuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Rebuilt)
	assert.Len(t, resp.Artifacts, 3)
	assert.Empty(t, resp.Error)

	for _, k := range snippet.Kinds() {
		want, err := snippet.Build(k, scfg)
		require.NoError(t, err)
		got, err := os.ReadFile(svc.cache.Path(k))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestHandleRebuild_FailureSurfaced(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newTestService(t, dir)

	// Squat a directory on the script artifact path to force one write
	// failure.
	require.NoError(t, os.MkdirAll(svc.cache.Path(snippet.KindScript), 0755))

	rec := httptest.NewRecorder()
	svc.handleRebuild(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rebuild", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp rebuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Rebuilt)
	assert.NotEmpty(t, resp.Error)

	// Best effort: the other artifacts were still written.
	_, err := os.ReadFile(svc.cache.Path(snippet.KindDataLayer))
	assert.NoError(t, err)
}

func TestHandleStatus(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newTestService(t, dir)

	rec := httptest.NewRecorder()
	svc.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Artifacts, 3)
	for _, a := range resp.Artifacts {
		assert.False(t, a.Present, "nothing rebuilt yet")
	}

	rec = httptest.NewRecorder()
	svc.handleRebuild(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rebuild", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	svc.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	for _, a := range resp.Artifacts {
		assert.True(t, a.Present)
		assert.Greater(t, a.Bytes, int64(0))
	}
}

func TestNewService_DefaultAddr(t *testing.T) {
	dir := t.TempDir()
	scfg := snippet.Config{ContainerID: "GTM-ADMIN", Dir: dir}
	cache := snippet.NewCache(dir, "/tagrunner")

	svc, err := NewService("", cache, func() snippet.Config { return scfg })
	if err != nil {
		// Port 9091 may be taken in the test environment; that is the
		// only acceptable failure.
		assert.Contains(t, err.Error(), "9091")
		return
	}
	t.Cleanup(func() { _ = svc.listener.Close() })
	assert.Equal(t, ":9091", svc.addr)
}
