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

package gates

import "strings"

// Evaluation memoizes gate results for the lifetime of one
// request/response cycle. Create one per request and discard it when the
// response is written; results are never shared across requests because
// configuration may change between them.
type Evaluation struct {
	src       Source
	req       Request
	overrides []Override

	status   *bool
	path     *bool
	role     *bool
	decision *bool
}

// NewEvaluation builds a per-request evaluation over the given
// configuration source and request attributes.
func NewEvaluation(src Source, req Request, overrides ...Override) *Evaluation {
	return &Evaluation{src: src, req: req, overrides: overrides}
}

func memo(slot **bool, compute func() bool) bool {
	if *slot == nil {
		v := compute()
		*slot = &v
	}
	return **slot
}

// StatusGate reports whether the response status code passes its gate.
func (e *Evaluation) StatusGate() bool {
	return memo(&e.status, func() bool {
		g := e.src.StatusGate()
		return g.apply(matchStatus(g, e.req.Status))
	})
}

// PathGate reports whether the request path passes its gate. Both the raw
// path and the alias are candidates; when they differ, matching either
// satisfies the gate.
func (e *Evaluation) PathGate() bool {
	return memo(&e.path, func() bool {
		g := e.src.PathGate()
		if len(g.Patterns) == 0 {
			return g.apply(false)
		}
		matched := matchPath(g, e.req.Path)
		if !matched && e.req.Alias != "" && !strings.EqualFold(e.req.Alias, e.req.Path) {
			matched = matchPath(g, e.req.Alias)
		}
		return g.apply(matched)
	})
}

// RoleGate reports whether the current user's role set passes its gate.
func (e *Evaluation) RoleGate() bool {
	return memo(&e.role, func() bool {
		g := e.src.RoleGate()
		return g.apply(matchRoles(g, e.req.Roles))
	})
}

// Decide returns the insertion decision: container id present and all
// three gates passing, then rewritten by any override hooks. The result
// is memoized alongside the individual gates.
func (e *Evaluation) Decide() bool {
	return memo(&e.decision, func() bool {
		d := e.src.ContainerID() != "" &&
			e.StatusGate() &&
			e.PathGate() &&
			e.RoleGate()
		for _, o := range e.overrides {
			d = o(e.req, d)
		}
		return d
	})
}
