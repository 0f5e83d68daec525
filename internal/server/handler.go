package server

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"os"

	"zipstream/internal/archive"
	"zipstream/internal/domain"
	"zipstream/pkg/config"
	apperrors "zipstream/pkg/errors"
	"zipstream/pkg/logger"
)

//go:embed static/index.html
var defaultIndex []byte

const notFoundMessage = "Archive does not exist or has been deleted"

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate
//counterfeiter:generate . Archiver

// Archiver produces one archive stream per call.
type Archiver interface {
	Archive(ctx context.Context, id string, sink archive.Sink) (*domain.Transfer, error)
}

type archiveHandler struct {
	cfg      *config.Config
	archiver Archiver
	logger   *logger.Logger
}

func newArchiveHandler(cfg *config.Config, a Archiver) *archiveHandler {
	return &archiveHandler{
		cfg:      cfg,
		archiver: a,
		logger:   logger.WithField("component", "archive-handler"),
	}
}

func (h *archiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log := h.logger.WithFields("id", id, "remote", r.RemoteAddr)
	log.Debug("archive requested")

	sink := newResponseSink(w, h.cfg.ArchiveFilename(id), h.cfg.Archive.ContentType)
	_, err := h.archiver.Archive(r.Context(), id, sink)
	if err == nil {
		return
	}

	if sink.prepared {
		// Headers are gone already. A truncated body must not look like a
		// complete one, so the connection is dropped unless the client left.
		if errors.Is(err, apperrors.ErrStreamInterrupted) && r.Context().Err() == nil {
			log.Debug("aborting interrupted response", "written", sink.written, "error", err)
			panic(http.ErrAbortHandler)
		}
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		http.Error(w, notFoundMessage, http.StatusNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// client went away while waiting for a slot
	default:
		http.Error(w, "Failed to build archive", http.StatusInternalServerError)
	}
}

type indexHandler struct {
	path   string
	logger *logger.Logger
}

func newIndexHandler(path string) *indexHandler {
	return &indexHandler{
		path:   path,
		logger: logger.WithField("component", "index-handler"),
	}
}

// ServeHTTP reads the configured page on every request so it can be edited
// without a restart.
func (h *indexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page := defaultIndex
	if h.path != "" {
		data, err := os.ReadFile(h.path)
		if err != nil {
			h.logger.Error("failed to read index page", "path", h.path, "error", err)
			http.Error(w, "Index page unavailable", http.StatusInternalServerError)
			return
		}
		page = data
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
