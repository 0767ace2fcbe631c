package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	templatesport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/templates"
)

// Store reads templates from a file system, either a directory on disk or the embedded defaults.
type Store struct {
	fsys fs.FS
}

var _ templatesport.Store = (*Store)(nil)

func NewFSStore(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

func NewDirStore(dir string) *Store {
	return NewFSStore(os.DirFS(dir))
}

func (s *Store) Load(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("%w: invalid template name %q", templatesport.ErrNotFound, name)
	}
	b, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", templatesport.ErrNotFound, name)
		}
		return "", fmt.Errorf("read template %s: %w", name, err)
	}
	return string(b), nil
}
