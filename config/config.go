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

package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardinalhq/tagrunner/internal/gates"
	"github.com/cardinalhq/tagrunner/internal/snippet"
)

// Config aggregates configuration for the application. It implements
// gates.Source so the evaluator never sees the backing store.
type Config struct {
	// Container is the tag-manager container id. Empty silently disables
	// insertion everywhere; it is not an error.
	Container string         `mapstructure:"container_id"`
	Gates     GatesConfig    `mapstructure:"gates"`
	Snippet   snippet.Config `mapstructure:"snippet"`
	Proxy     ProxyConfig    `mapstructure:"proxy"`
	Admin     AdminConfig    `mapstructure:"admin"`
}

type GatesConfig struct {
	Status gates.Gate `mapstructure:"status"`
	Path   gates.Gate `mapstructure:"path"`
	Role   gates.Gate `mapstructure:"role"`
}

type ProxyConfig struct {
	// Listen is the address the injecting proxy serves on.
	Listen string `mapstructure:"listen"`
	// Upstream is the origin whose HTML responses get the snippet.
	Upstream string `mapstructure:"upstream"`
	// AliasHeader names the upstream response header carrying the
	// resolved path alias; RolesHeader names the request header carrying
	// the comma-separated role set.
	AliasHeader string `mapstructure:"alias_header"`
	RolesHeader string `mapstructure:"roles_header"`
}

type AdminConfig struct {
	Listen string `mapstructure:"listen"`
}

// DefaultConfig returns the defaults: all gates exclude-listed with
// empty lists (insert everywhere once a container id is set), inline
// delivery, artifacts under public/tagrunner.
func DefaultConfig() *Config {
	return &Config{
		Gates: GatesConfig{
			Status: gates.Gate{Toggle: gates.ToggleExcludeListed},
			Path:   gates.Gate{Toggle: gates.ToggleExcludeListed},
			Role:   gates.Gate{Toggle: gates.ToggleExcludeListed},
		},
		Snippet: snippet.Config{
			DataLayerName: snippet.DefaultDataLayerName,
			Hostname:      snippet.DefaultHostname,
			Dir:           "public/tagrunner",
			URIBase:       "/tagrunner",
		},
		Proxy: ProxyConfig{
			Listen:      ":8080",
			AliasHeader: "X-Page-Alias",
			RolesHeader: "X-User-Roles",
		},
		Admin: AdminConfig{
			Listen: ":9091",
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "TAGRUNNER" and the dot character
// in keys is replaced by an underscore. For example, "proxy.listen"
// becomes "TAGRUNNER_PROXY_LISTEN".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("TAGRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes toggles and rejects unknown toggle values. The
// snippet config inherits the container id so the two never drift.
func (c *Config) Validate() error {
	for name, g := range map[string]*gates.Gate{
		"gates.status": &c.Gates.Status,
		"gates.path":   &c.Gates.Path,
		"gates.role":   &c.Gates.Role,
	} {
		g.Toggle = gates.Toggle(strings.ToLower(strings.TrimSpace(string(g.Toggle))))
		if g.Toggle == "" {
			g.Toggle = gates.ToggleExcludeListed
		}
		if !g.Toggle.Valid() {
			return fmt.Errorf("%s.toggle: unknown value %q", name, g.Toggle)
		}
	}
	c.Snippet.ContainerID = c.Container
	return nil
}

// ContainerID implements gates.Source.
func (c *Config) ContainerID() string { return c.Container }

// StatusGate implements gates.Source.
func (c *Config) StatusGate() gates.Gate { return c.Gates.Status }

// PathGate implements gates.Source.
func (c *Config) PathGate() gates.Gate { return c.Gates.Path }

// RoleGate implements gates.Source.
func (c *Config) RoleGate() gates.Gate { return c.Gates.Role }

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
