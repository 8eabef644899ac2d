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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tagrunner/config"
	"github.com/cardinalhq/tagrunner/internal/snippet"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "regenerate the snippet artifacts from current configuration",
		Long: `Rebuild all snippet artifacts in the public file area, overwriting any
existing content. A failed write is reported but does not stop the
remaining artifacts from being attempted.`,
		RunE: rebuild,
	}

	rootCmd.AddCommand(cmd)
}

func rebuild(_ *cobra.Command, _ []string) error {
	slog.Info("Starting snippet rebuild")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Container == "" {
		return fmt.Errorf("container_id is required to build snippets")
	}

	cache := snippet.NewCache(cfg.Snippet.Dir, cfg.Snippet.URIBase)
	if err := cache.Regenerate(context.Background(), cfg.Snippet); err != nil {
		slog.Error("Snippet rebuild failed", slog.Any("error", err))
		return err
	}

	for _, k := range snippet.Kinds() {
		slog.Info("Rebuilt snippet artifact", slog.String("file", cache.Path(k)))
	}
	slog.Info("Snippet rebuild completed successfully")
	return nil
}
