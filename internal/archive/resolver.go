package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"zipstream/internal/domain"
	apperrors "zipstream/pkg/errors"
)

type statter interface {
	Stat(name string) (os.FileInfo, error)
}

// Resolver maps request identifiers to directories under a storage root.
type Resolver struct {
	root string
	fs   statter
}

// NewResolver expects an absolute, cleaned root.
func NewResolver(root string, fs statter) *Resolver {
	return &Resolver{root: filepath.Clean(root), fs: fs}
}

func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the request for id, or an error matching ErrNotFound when
// id is not a single safe path segment or does not name a directory.
func (r *Resolver) Resolve(id string) (*domain.ArchiveRequest, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	dir := filepath.Join(r.root, id)
	if !strings.HasPrefix(dir, r.root+string(filepath.Separator)) {
		return nil, fmt.Errorf("%q escapes storage root: %w", id, apperrors.ErrInvalidID)
	}

	info, err := r.fs.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", id, apperrors.ErrNotFound)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory: %w", id, apperrors.ErrNotFound)
	}

	return &domain.ArchiveRequest{ID: id, Dir: dir}, nil
}

func validateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return fmt.Errorf("%q: %w", id, apperrors.ErrInvalidID)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%q contains a path separator: %w", id, apperrors.ErrInvalidID)
	case filepath.IsAbs(id):
		return fmt.Errorf("%q is absolute: %w", id, apperrors.ErrInvalidID)
	}
	return nil
}
