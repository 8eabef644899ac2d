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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jellydator/ttlcache/v3"
)

// Invalidator is notified after a fully successful regeneration so any
// downstream asset cache can drop stale copies of the artifacts.
type Invalidator func(ctx context.Context) error

// Cache manages the on-disk snippet artifacts. Writes happen only through
// Regenerate; reads go through a short-TTL in-process cache so in-flight
// responses during a regeneration may observe pre- or post-regeneration
// content, which is tolerated.
type Cache struct {
	dir         string
	uriBase     string
	reads       *ttlcache.Cache[Kind, fetchValue]
	invalidator Invalidator
}

type fetchValue struct {
	body []byte
	ok   bool
}

const readTTL = 5 * time.Second

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithInvalidator registers the downstream asset-cache invalidation hook.
func WithInvalidator(inv Invalidator) CacheOption {
	return func(c *Cache) { c.invalidator = inv }
}

// NewCache creates a cache over the given public directory. uriBase is
// the public URI prefix the directory is served under.
func NewCache(dir, uriBase string, opts ...CacheOption) *Cache {
	c := &Cache{
		dir:     dir,
		uriBase: strings.TrimRight(uriBase, "/"),
		reads: ttlcache.New(
			ttlcache.WithTTL[Kind, fetchValue](readTTL),
			ttlcache.WithDisableTouchOnHit[Kind, fetchValue](),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the on-disk location of the artifact for k.
func (c *Cache) Path(k Kind) string {
	return filepath.Join(c.dir, k.Filename())
}

// URI returns the public URI of the artifact for k, for file-reference
// delivery.
func (c *Cache) URI(k Kind) string {
	return c.uriBase + "/" + k.Filename()
}

// Regenerate rebuilds all artifacts from cfg and writes each to its
// well-known path, overwriting existing content. Writes are best-effort:
// a failed artifact is recorded and the remaining ones are still
// attempted. The rebuild fails if any artifact failed, succeeds
// otherwise; on full success the registered invalidator runs.
func (c *Cache) Regenerate(ctx context.Context, cfg Config) error {
	var errs *multierror.Error

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("create snippet dir %s: %w", c.dir, err))
	}

	for _, k := range Kinds() {
		body, err := Build(k, cfg)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if err := os.WriteFile(c.Path(k), body, 0644); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write %s: %w", k, err))
			continue
		}
		slog.Debug("Wrote snippet artifact", slog.String("kind", string(k)), slog.Int("bytes", len(body)))
	}

	c.reads.DeleteAll()

	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	if c.invalidator != nil {
		if err := c.invalidator(ctx); err != nil {
			return fmt.Errorf("invalidate downstream asset cache: %w", err)
		}
	}
	return nil
}

// Fetch returns the current bytes of the artifact for k, for inline
// delivery. A missing or unreadable artifact returns (nil, false); render
// time treats that as "omit silently", never as a hard failure.
func (c *Cache) Fetch(k Kind) ([]byte, bool) {
	loader := ttlcache.LoaderFunc[Kind, fetchValue](
		func(cache *ttlcache.Cache[Kind, fetchValue], key Kind) *ttlcache.Item[Kind, fetchValue] {
			body, err := os.ReadFile(c.Path(key))
			if err != nil {
				return cache.Set(key, fetchValue{}, ttlcache.DefaultTTL)
			}
			return cache.Set(key, fetchValue{body: body, ok: true}, ttlcache.DefaultTTL)
		},
	)
	v := c.reads.Get(k, ttlcache.WithLoader(loader))
	if v == nil {
		return nil, false
	}
	return v.Value().body, v.Value().ok
}

// Stat reports presence and size of the artifact for k without touching
// the read cache. The admin status endpoint uses it.
func (c *Cache) Stat(k Kind) (int64, bool) {
	fi, err := os.Stat(c.Path(k))
	if err != nil {
		return 0, false
	}
	return fi.Size(), true
}
