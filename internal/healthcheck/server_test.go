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

package healthcheck

import (
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusStarting, "starting"},
		{StatusHealthy, "healthy"},
		{StatusUnhealthy, "unhealthy"},
		{Status(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPortFromEnv(t *testing.T) {
	t.Setenv("TAGRUNNER_HEALTH_PORT", "")
	if got := PortFromEnv(); got != 8090 {
		t.Errorf("expected default port 8090, got %d", got)
	}

	t.Setenv("TAGRUNNER_HEALTH_PORT", "9191")
	if got := PortFromEnv(); got != 9191 {
		t.Errorf("expected port 9191, got %d", got)
	}

	t.Setenv("TAGRUNNER_HEALTH_PORT", "junk")
	if got := PortFromEnv(); got != 8090 {
		t.Errorf("expected fallback port 8090 for invalid value, got %d", got)
	}
}

func TestIsReady_Conditions(t *testing.T) {
	s := NewServer(0)

	if s.IsReady() {
		t.Error("expected not ready before SetReady")
	}

	s.SetReady(true)
	if !s.IsReady() {
		t.Error("expected ready with no conditions")
	}

	s.SetReadyCondition("snippets_present", false)
	if s.IsReady() {
		t.Error("expected not ready with a failing condition")
	}

	s.SetReadyCondition("snippets_present", true)
	if !s.IsReady() {
		t.Error("expected ready once all conditions hold")
	}

	s.SetReady(false)
	if s.IsReady() {
		t.Error("base ready flag must still gate readiness")
	}
}

func TestSetStatus(t *testing.T) {
	s := NewServer(0)
	if s.GetStatus() != StatusStarting {
		t.Errorf("expected initial status starting, got %v", s.GetStatus())
	}

	s.SetStatus(StatusHealthy)
	if s.GetStatus() != StatusHealthy {
		t.Errorf("expected healthy, got %v", s.GetStatus())
	}
}
