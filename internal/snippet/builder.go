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

// Package snippet generates the container snippet artifacts and manages
// their on-disk cache. The three artifacts are regenerated wholesale when
// configuration changes and are read-only during normal request serving.
package snippet

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind names one of the generated artifacts.
type Kind string

const (
	KindDataLayer Kind = "data_layer"
	KindScript    Kind = "script"
	KindNoScript  Kind = "noscript"
)

// Kinds returns all artifact kinds in generation order.
func Kinds() []Kind {
	return []Kind{KindDataLayer, KindScript, KindNoScript}
}

// Ext returns the artifact file extension, including the dot.
func (k Kind) Ext() string {
	if k == KindNoScript {
		return ".html"
	}
	return ".js"
}

// Filename returns the well-known artifact file name for k.
func (k Kind) Filename() string {
	return "tagrunner." + string(k) + k.Ext()
}

const (
	DefaultDataLayerName = "dataLayer"
	DefaultHostname      = "www.googletagmanager.com"
)

// Config holds everything needed to build the snippet bodies.
type Config struct {
	// ContainerID is the tag-manager container the snippets load. Empty
	// disables insertion entirely; builders reject it.
	ContainerID string `mapstructure:"container_id" json:"container_id"`
	// DataLayerName overrides the default dataLayer variable name.
	DataLayerName string `mapstructure:"data_layer_name" json:"data_layer_name"`
	// Hostname overrides the tag-manager host serving gtm.js and ns.html.
	Hostname string `mapstructure:"hostname" json:"hostname"`
	// EnvironmentID and EnvironmentToken select a non-default container
	// environment (preview workspaces). Both must be set to take effect.
	EnvironmentID    string `mapstructure:"environment_id" json:"environment_id"`
	EnvironmentToken string `mapstructure:"environment_token" json:"environment_token"`
	// Compact strips insignificant whitespace from the generated bodies.
	Compact bool `mapstructure:"compact" json:"compact"`

	// Dir is the public file area the artifacts are written to.
	Dir string `mapstructure:"dir" json:"dir"`
	// URIBase is the public URI prefix the artifacts are served under,
	// used for file-reference delivery.
	URIBase string `mapstructure:"uri_base" json:"uri_base"`
	// IncludeFile selects file-reference delivery over inline delivery
	// for the script artifacts.
	IncludeFile bool `mapstructure:"include_file" json:"include_file"`
}

func (c Config) dataLayerName() string {
	if c.DataLayerName == "" {
		return DefaultDataLayerName
	}
	return c.DataLayerName
}

func (c Config) hostname() string {
	if c.Hostname == "" {
		return DefaultHostname
	}
	return c.Hostname
}

// environmentQuery returns the extra query parameters selecting a
// container environment, or "" when none is configured.
func (c Config) environmentQuery() string {
	if c.EnvironmentID == "" || c.EnvironmentToken == "" {
		return ""
	}
	return "&gtm_auth=" + url.QueryEscape(c.EnvironmentToken) +
		"&gtm_preview=" + url.QueryEscape(c.EnvironmentID) +
		"&gtm_cookies_win=x"
}

// Build generates the body for one artifact kind. Same config yields the
// same bytes, so regeneration is idempotent.
func Build(kind Kind, cfg Config) ([]byte, error) {
	if cfg.ContainerID == "" {
		return nil, fmt.Errorf("snippet %s: container id is required", kind)
	}
	var body string
	switch kind {
	case KindDataLayer:
		body = buildDataLayer(cfg)
	case KindScript:
		body = buildScript(cfg)
	case KindNoScript:
		body = buildNoScript(cfg)
	default:
		return nil, fmt.Errorf("snippet: unknown kind %q", kind)
	}
	if cfg.Compact {
		body = compact(body)
	}
	return []byte(body), nil
}

func buildDataLayer(cfg Config) string {
	name := cfg.dataLayerName()
	return fmt.Sprintf("window.%s = window.%s || [];\n", name, name)
}

func buildScript(cfg Config) string {
	return fmt.Sprintf(`(function(w,d,s,l,i){
  w[l]=w[l]||[];
  w[l].push({'gtm.start':new Date().getTime(),event:'gtm.js'});
  var f=d.getElementsByTagName(s)[0],j=d.createElement(s),dl=l!='dataLayer'?'&l='+l:'';
  j.async=true;
  j.src='https://%s/gtm.js?id='+i+dl+'%s';
  f.parentNode.insertBefore(j,f);
})(window,document,'script','%s','%s');
`, cfg.hostname(), cfg.environmentQuery(), cfg.dataLayerName(), cfg.ContainerID)
}

func buildNoScript(cfg Config) string {
	return fmt.Sprintf(`<noscript><iframe src="https://%s/ns.html?id=%s%s" height="0" width="0" style="display:none;visibility:hidden"></iframe></noscript>
`, cfg.hostname(), cfg.ContainerID, cfg.environmentQuery())
}

// compact removes newlines and leading indentation. The bodies contain no
// string literals with significant whitespace, so this is safe.
func compact(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "")
}
