// Package server exposes the live tree and the trash over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/babarot/stowage/internal/index"
	"github.com/babarot/stowage/internal/storage"
	"github.com/babarot/stowage/internal/trash"
)

// Options configures a Server
type Options struct {
	CORSOrigins       []string
	MaxUploadSize     int64
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
}

// Server routes requests to the storage service and the trash manager
type Server struct {
	storage *storage.Service
	trash   *trash.Manager
	idx     *index.Indexes
	opts    Options
	handler http.Handler
}

// New builds the route table
func New(svc *storage.Service, tm *trash.Manager, idx *index.Indexes, opts Options) *Server {
	s := &Server{storage: svc, trash: tm, idx: idx, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("POST /files/upload", s.uploadFile)
	mux.HandleFunc("GET /files", s.listFiles)
	mux.HandleFunc("GET /files/{id}", s.downloadFile)
	mux.HandleFunc("PATCH /files/{id}", s.updateFile)
	mux.HandleFunc("DELETE /files/{id}", s.trashFile)

	mux.HandleFunc("POST /folders", s.createFolder)
	mux.HandleFunc("GET /folders", s.listFolders)
	mux.HandleFunc("GET /folders/{id}", s.getFolder)
	mux.HandleFunc("PATCH /folders/{id}", s.updateFolder)
	mux.HandleFunc("DELETE /folders/{id}", s.trashFolder)

	mux.HandleFunc("GET /trash", s.listTrash)
	mux.HandleFunc("DELETE /trash/empty", s.emptyTrash)
	mux.HandleFunc("GET /trash/{id}", s.getTrash)
	mux.HandleFunc("POST /trash/{id}/restore", s.restoreTrash)
	mux.HandleFunc("DELETE /trash/{id}", s.purgeTrash)

	var h http.Handler = mux
	h = withRecovery(h)
	h = withCORS(opts.CORSOrigins, h)
	h = withRequestLog(h)
	s.handler = h
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is done, then drains
// in-flight requests within the shutdown timeout
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server", "timeout", s.opts.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": s.idx.Backend().Name(),
		"files":   s.idx.Files.Len(),
		"folders": s.idx.Folders.Len(),
		"trash":   s.idx.Trash.Len(),
	})
}
