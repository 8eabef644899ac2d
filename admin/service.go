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

// Package admin exposes the administrative rebuild trigger and artifact
// status over HTTP.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cardinalhq/tagrunner/internal/snippet"
)

// Service hosts the admin endpoints. Rebuild is infrequent and
// administrator-triggered; failures are always surfaced to the caller,
// never swallowed.
type Service struct {
	server     *http.Server
	listener   net.Listener
	addr       string
	serverID   string
	cache      *snippet.Cache
	snippetCfg func() snippet.Config
}

// NewService binds the admin listener. snippetCfg is called per rebuild
// so configuration changes between requests are honored.
func NewService(addr string, cache *snippet.Cache, snippetCfg func() snippet.Config) (*Service, error) {
	if addr == "" {
		addr = ":9091"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	hostname, _ := os.Hostname()
	s := &Service{
		listener:   listener,
		addr:       addr,
		serverID:   fmt.Sprintf("%s-%d", hostname, time.Now().Unix()),
		cache:      cache,
		snippetCfg: snippetCfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/rebuild", s.handleRebuild)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.server = &http.Server{Handler: mux}

	return s, nil
}

// Addr returns the bound listener address.
func (s *Service) Addr() string {
	return s.listener.Addr().String()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("Starting admin service", slog.String("addr", s.listener.Addr().String()))

	errChan := make(chan error, 1)

	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("admin server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down admin service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

type rebuildResponse struct {
	Rebuilt   bool     `json:"rebuilt"`
	Artifacts []string `json:"artifacts,omitempty"`
	Error     string   `json:"error,omitempty"`
	ServerID  string   `json:"server_id"`
}

func (s *Service) handleRebuild(w http.ResponseWriter, r *http.Request) {
	slog.Info("Received rebuild request")

	resp := rebuildResponse{ServerID: s.serverID}
	if err := s.cache.Regenerate(r.Context(), s.snippetCfg()); err != nil {
		slog.Error("Snippet rebuild failed", slog.Any("error", err))
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	resp.Rebuilt = true
	for _, k := range snippet.Kinds() {
		resp.Artifacts = append(resp.Artifacts, k.Filename())
	}
	slog.Info("Snippet rebuild completed")
	writeJSON(w, http.StatusOK, resp)
}

type artifactStatus struct {
	Kind    string `json:"kind"`
	File    string `json:"file"`
	Present bool   `json:"present"`
	Bytes   int64  `json:"bytes"`
}

type statusResponse struct {
	Artifacts []artifactStatus `json:"artifacts"`
	ServerID  string           `json:"server_id"`
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{ServerID: s.serverID}
	for _, k := range snippet.Kinds() {
		size, present := s.cache.Stat(k)
		resp.Artifacts = append(resp.Artifacts, artifactStatus{
			Kind:    string(k),
			File:    k.Filename(),
			Present: present,
			Bytes:   size,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode admin response", slog.Any("error", err))
	}
}
