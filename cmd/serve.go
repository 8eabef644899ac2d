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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tagrunner/admin"
	"github.com/cardinalhq/tagrunner/config"
	"github.com/cardinalhq/tagrunner/internal/healthcheck"
	"github.com/cardinalhq/tagrunner/internal/inject"
	"github.com/cardinalhq/tagrunner/internal/snippet"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the injecting proxy, admin, and health servers",
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "serve"
			doneCtx, doneFx, err := setupTelemetry(servicename)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}

			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Proxy.Upstream == "" {
				return fmt.Errorf("proxy.upstream is required")
			}
			upstream, err := url.Parse(cfg.Proxy.Upstream)
			if err != nil {
				return fmt.Errorf("invalid proxy.upstream %q: %w", cfg.Proxy.Upstream, err)
			}

			healthServer := healthcheck.NewServer(healthcheck.PortFromEnv())
			go func() {
				if err := healthServer.Start(doneCtx); err != nil {
					slog.Error("Health check server stopped", slog.Any("error", err))
				}
			}()

			cache := snippet.NewCache(cfg.Snippet.Dir, cfg.Snippet.URIBase)

			// Regenerate on boot so file-reference delivery has artifacts to
			// serve. A failed boot rebuild is reported but not fatal; the
			// render path omits missing artifacts silently and an
			// administrator can rebuild later.
			if cfg.Container != "" {
				if err := cache.Regenerate(doneCtx, cfg.Snippet); err != nil {
					slog.Error("Boot snippet rebuild failed", slog.Any("error", err))
					healthServer.SetReadyCondition("snippets_present", false)
				} else {
					healthServer.SetReadyCondition("snippets_present", true)
				}
			} else {
				slog.Info("No container id configured; snippet insertion disabled")
			}

			adminService, err := admin.NewService(cfg.Admin.Listen, cache, func() snippet.Config {
				return cfg.Snippet
			})
			if err != nil {
				return fmt.Errorf("failed to create admin service: %w", err)
			}
			go func() {
				if err := adminService.Run(doneCtx); err != nil {
					slog.Error("Admin service stopped", slog.Any("error", err))
				}
			}()

			proxy := httputil.NewSingleHostReverseProxy(upstream)
			handler := inject.New(proxy, inject.Options{
				Source:      cfg,
				Cache:       cache,
				SnippetCfg:  func() snippet.Config { return cfg.Snippet },
				AliasHeader: cfg.Proxy.AliasHeader,
				RolesHeader: cfg.Proxy.RolesHeader,
			})

			mux := http.NewServeMux()
			mux.Handle("/", handler)
			if cfg.Snippet.URIBase != "" {
				// Serve the public artifact files for file-reference delivery.
				prefix := cfg.Snippet.URIBase + "/"
				mux.Handle(prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Snippet.Dir))))
			}

			server := &http.Server{
				Addr:    cfg.Proxy.Listen,
				Handler: mux,
			}

			errChan := make(chan error, 1)
			go func() {
				slog.Info("Starting proxy server", slog.String("addr", cfg.Proxy.Listen), slog.String("upstream", upstream.String()))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errChan <- fmt.Errorf("proxy server failed: %w", err)
				}
			}()

			healthServer.SetStatus(healthcheck.StatusHealthy)
			healthServer.SetReady(true)

			select {
			case <-doneCtx.Done():
				slog.Info("Shutting down proxy server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errChan:
				return err
			}
		},
	}

	rootCmd.AddCommand(cmd)
}
