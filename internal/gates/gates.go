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

// Package gates decides, per request, whether the container snippet is
// inserted into a page response. Each gate combines a toggle with a
// pattern list; the insertion decision is the conjunction of the three
// gates plus the container id presence check, optionally rewritten by
// override hooks.
package gates

import (
	"path"
	"strconv"
	"strings"
)

// Toggle selects whether list membership or non-membership satisfies a gate.
type Toggle string

const (
	// ToggleIncludeListed passes only when the request attribute matches the list.
	ToggleIncludeListed Toggle = "include_listed"
	// ToggleExcludeListed passes except when the request attribute matches the list.
	ToggleExcludeListed Toggle = "exclude_listed"
)

// Valid reports whether t is one of the two supported toggle values.
func (t Toggle) Valid() bool {
	return t == ToggleIncludeListed || t == ToggleExcludeListed
}

// Gate is one boolean decision rule: a toggle plus an ordered pattern list.
type Gate struct {
	Toggle   Toggle   `mapstructure:"toggle" json:"toggle"`
	Patterns []string `mapstructure:"patterns" json:"patterns"`
}

// apply resolves the gate given the match outcome. An empty list short
// circuits: exclude-listed defaults to allow, include-listed to deny.
func (g Gate) apply(matched bool) bool {
	if len(g.Patterns) == 0 {
		return g.Toggle == ToggleExcludeListed
	}
	if g.Toggle == ToggleExcludeListed {
		return !matched
	}
	return matched
}

// Source is a read-only view of the gate configuration. It decouples
// evaluation from any particular configuration backend; config.Config
// implements it.
type Source interface {
	ContainerID() string
	StatusGate() Gate
	PathGate() Gate
	RoleGate() Gate
}

// Request carries the per-request attributes the gates inspect. Alias is
// the resolved human-readable alias for Path, if any; an empty or
// identical alias is checked once.
type Request struct {
	Status int
	Path   string
	Alias  string
	Roles  []string
}

// Override may replace the computed insertion decision. Overrides run in
// order, each receiving the previous value; the last return wins.
type Override func(req Request, decision bool) bool

func matchStatus(g Gate, status int) bool {
	code := strconv.Itoa(status)
	for _, p := range g.Patterns {
		if strings.TrimSpace(p) == code {
			return true
		}
	}
	return false
}

// matchPath compares a single candidate path against the pattern list,
// case-insensitively. Patterns are shell-style globs; a pattern that does
// not parse falls back to exact comparison.
func matchPath(g Gate, candidate string) bool {
	candidate = strings.ToLower(candidate)
	for _, p := range g.Patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if ok, err := path.Match(p, candidate); err == nil && ok {
			return true
		}
		if p == candidate {
			return true
		}
	}
	return false
}

func matchRoles(g Gate, roles []string) bool {
	if len(roles) == 0 {
		return false
	}
	listed := make(map[string]struct{}, len(g.Patterns))
	for _, p := range g.Patterns {
		listed[strings.TrimSpace(p)] = struct{}{}
	}
	for _, r := range roles {
		if _, ok := listed[r]; ok {
			return true
		}
	}
	return false
}
