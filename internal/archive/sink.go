package archive

import "io"

// WriterSink streams an archive into any io.Writer, typically a local file.
type WriterSink struct {
	w        io.Writer
	written  int64
	progress func(total int64)
}

// NewWriterSink returns a sink over w. progress, when set, is called after
// every chunk with the running byte total.
func NewWriterSink(w io.Writer, progress func(total int64)) *WriterSink {
	return &WriterSink{w: w, progress: progress}
}

func (s *WriterSink) Prepare() error {
	return nil
}

func (s *WriterSink) Write(chunk []byte) error {
	n, err := s.w.Write(chunk)
	s.written += int64(n)
	if err != nil {
		return err
	}
	if n < len(chunk) {
		return io.ErrShortWrite
	}
	if s.progress != nil {
		s.progress(s.written)
	}
	return nil
}

func (s *WriterSink) Written() int64 {
	return s.written
}
