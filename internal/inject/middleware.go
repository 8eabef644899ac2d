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

// Package inject wraps an http.Handler and inserts the container snippet
// into HTML responses that pass the gates. It buffers each HTML response,
// runs a fresh per-request gate evaluation against the response status,
// request path, alias and user roles, and splices the attachments in
// before writing the result downstream.
package inject

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cardinalhq/tagrunner/internal/gates"
	"github.com/cardinalhq/tagrunner/internal/logctx"
	"github.com/cardinalhq/tagrunner/internal/page"
	"github.com/cardinalhq/tagrunner/internal/snippet"
)

// Options wires the middleware's collaborators. AliasHeader and
// RolesHeader name the upstream headers carrying the resolved path alias
// and the comma-separated role set; empty values leave the corresponding
// request attribute unset.
type Options struct {
	Source      gates.Source
	Cache       *snippet.Cache
	SnippetCfg  func() snippet.Config
	AliasHeader string
	RolesHeader string
	Overrides   []gates.Override
}

type Middleware struct {
	next http.Handler
	opts Options
}

// New wraps next with snippet injection.
func New(next http.Handler, opts Options) *Middleware {
	return &Middleware{next: next, opts: opts}
}

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestID(r.Context(), uuid.NewString())
	r = r.WithContext(ctx)

	rec := newRecorder(w)
	m.next.ServeHTTP(rec, r)

	if !rec.buffered {
		responsesSkipped.Add(ctx, 1)
		return
	}

	body := rec.body.Bytes()
	req := gates.Request{
		Status: rec.status,
		Path:   r.URL.Path,
		Alias:  rec.Header().Get(m.opts.AliasHeader),
		Roles:  splitRoles(r.Header.Get(m.opts.RolesHeader)),
	}

	// Evaluation is scoped to this request; gate results never outlive it.
	eval := gates.NewEvaluation(m.opts.Source, req, m.opts.Overrides...)
	responsesEvaluated.Add(ctx, 1)

	if eval.Decide() {
		body = page.Inject(body, page.Compose(m.opts.SnippetCfg(), m.opts.Cache))
		snippetsInjected.Add(ctx, 1)
		logctx.FromContext(ctx).Debug("Injected container snippet",
			slog.String("path", req.Path),
			slog.Int("status", req.Status))
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(rec.status)
	if _, err := w.Write(body); err != nil {
		logctx.FromContext(ctx).Warn("Failed to write response", slog.Any("error", err))
	}
}

func splitRoles(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	roles := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}

// recorder buffers HTML responses. Non-HTML responses stream straight
// through to the underlying writer.
type recorder struct {
	w        http.ResponseWriter
	status   int
	body     bytes.Buffer
	buffered bool
	decided  bool
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{w: w, status: http.StatusOK}
}

func (r *recorder) Header() http.Header {
	return r.w.Header()
}

func (r *recorder) WriteHeader(status int) {
	if r.decided {
		return
	}
	r.decided = true
	r.status = status
	ct := r.w.Header().Get("Content-Type")
	r.buffered = ct == "" || strings.Contains(strings.ToLower(ct), "text/html")
	if !r.buffered {
		r.w.WriteHeader(status)
	}
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.decided {
		r.WriteHeader(http.StatusOK)
	}
	if r.buffered {
		return r.body.Write(p)
	}
	return r.w.Write(p)
}
