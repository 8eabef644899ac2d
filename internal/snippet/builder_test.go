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

package snippet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_RequiresContainerID(t *testing.T) {
	for _, k := range Kinds() {
		_, err := Build(k, Config{})
		assert.Error(t, err, string(k))
	}
}

func TestBuild_UnknownKind(t *testing.T) {
	_, err := Build(Kind("bogus"), Config{ContainerID: "GTM-XXX"})
	assert.Error(t, err)
}

func TestBuild_Idempotent(t *testing.T) {
	cfg := Config{ContainerID: "GTM-ABC123", EnvironmentID: "env-5", EnvironmentToken: "tok"}
	for _, k := range Kinds() {
		a, err := Build(k, cfg)
		require.NoError(t, err)
		b, err := Build(k, cfg)
		require.NoError(t, err)
		assert.Equal(t, a, b, "same config must yield same bytes for %s", k)
	}
}

func TestBuild_DataLayer(t *testing.T) {
	body, err := Build(KindDataLayer, Config{ContainerID: "GTM-XXX"})
	require.NoError(t, err)
	assert.Equal(t, "window.dataLayer = window.dataLayer || [];\n", string(body))

	body, err = Build(KindDataLayer, Config{ContainerID: "GTM-XXX", DataLayerName: "customLayer"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "window.customLayer")
}

func TestBuild_Script(t *testing.T) {
	body, err := Build(KindScript, Config{ContainerID: "GTM-ABC123"})
	require.NoError(t, err)
	s := string(body)
	assert.Contains(t, s, "https://www.googletagmanager.com/gtm.js?id=")
	assert.Contains(t, s, "'GTM-ABC123'")
	assert.Contains(t, s, "'dataLayer'")
	assert.NotContains(t, s, "gtm_auth")
}

func TestBuild_ScriptEnvironment(t *testing.T) {
	cfg := Config{
		ContainerID:      "GTM-ABC123",
		EnvironmentID:    "env-5",
		EnvironmentToken: "abc&def",
	}
	body, err := Build(KindScript, cfg)
	require.NoError(t, err)
	s := string(body)
	assert.Contains(t, s, "&gtm_auth=abc%26def")
	assert.Contains(t, s, "&gtm_preview=env-5")
	assert.Contains(t, s, "&gtm_cookies_win=x")

	// Both environment fields are required for the parameters to appear.
	cfg.EnvironmentToken = ""
	body, err = Build(KindScript, cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "gtm_preview")
}

func TestBuild_ScriptCustomHostname(t *testing.T) {
	body, err := Build(KindScript, Config{ContainerID: "GTM-X", Hostname: "tags.example.com"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "https://tags.example.com/gtm.js")
}

func TestBuild_NoScript(t *testing.T) {
	body, err := Build(KindNoScript, Config{ContainerID: "GTM-ABC123"})
	require.NoError(t, err)
	s := string(body)
	assert.True(t, strings.HasPrefix(s, "<noscript>"))
	assert.Contains(t, s, "https://www.googletagmanager.com/ns.html?id=GTM-ABC123")
	assert.Contains(t, s, "visibility:hidden")
}

func TestBuild_Compact(t *testing.T) {
	cfg := Config{ContainerID: "GTM-X", Compact: true}
	body, err := Build(KindScript, cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "\n")

	cfg.Compact = false
	loose, err := Build(KindScript, cfg)
	require.NoError(t, err)
	assert.Greater(t, len(loose), len(body))
}

func TestKind_Filename(t *testing.T) {
	assert.Equal(t, "tagrunner.data_layer.js", KindDataLayer.Filename())
	assert.Equal(t, "tagrunner.script.js", KindScript.Filename())
	assert.Equal(t, "tagrunner.noscript.html", KindNoScript.Filename())
}
