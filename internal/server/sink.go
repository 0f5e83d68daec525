package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// responseSink streams an archive into an HTTP response. Headers are
// committed on Prepare and every chunk is flushed so the client sees
// progress while the tool is still running.
type responseSink struct {
	w           http.ResponseWriter
	rc          *http.ResponseController
	filename    string
	contentType string
	prepared    bool
	written     int64
}

func newResponseSink(w http.ResponseWriter, filename, contentType string) *responseSink {
	return &responseSink{
		w:           w,
		rc:          http.NewResponseController(w),
		filename:    filename,
		contentType: contentType,
	}
}

func (s *responseSink) Prepare() error {
	h := s.w.Header()
	h.Set("Content-Type", s.contentType)
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, quoteEscaper.Replace(s.filename)))
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)
	s.prepared = true
	return s.flush()
}

func (s *responseSink) Write(chunk []byte) error {
	n, err := s.w.Write(chunk)
	s.written += int64(n)
	if err != nil {
		return err
	}
	return s.flush()
}

func (s *responseSink) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
