package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

var ErrDestinationUnwritable = errors.New("destination unwritable")

// Store persists the generated document.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) (string, error)
	// Write creates the file or replaces its content.
	Write(ctx context.Context, path, text string) error
	Append(ctx context.Context, path, text string) error
}

// FileStore keeps documents on the local filesystem, usually inside a notes
// vault. Relative paths are resolved against Root.
type FileStore struct {
	Root   string
	Logger *slog.Logger
}

func NewFileStore(root string, l *slog.Logger) *FileStore {
	return &FileStore{Root: root, Logger: l}
}

func (s *FileStore) resolve(path string) string {
	if filepath.IsAbs(path) || s.Root == "" {
		return filepath.Clean(path)
	}

	return filepath.Join(s.Root, path)
}

func (s *FileStore) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(s.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("checking %s: %w", path, err)
}

func (s *FileStore) Read(_ context.Context, path string) (string, error) {
	bs, err := os.ReadFile(s.resolve(path))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	return string(bs), nil
}

// Write replaces the file atomically: the text goes to a temporary file in
// the same directory which is then renamed over the target.
func (s *FileStore) Write(ctx context.Context, path, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.resolve(path)
	dir := filepath.Dir(target)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrDestinationUnwritable, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temporary file: %w", ErrDestinationUnwritable, err)
	}

	_, err = tmp.WriteString(text)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), 0o644)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), target)
	}

	if err != nil {
		if rerr := os.Remove(tmp.Name()); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			s.Logger.Warn("Failed to remove temporary file " + tmp.Name() + ": " + rerr.Error())
		}
		return fmt.Errorf("%w: writing %s: %w", ErrDestinationUnwritable, path, err)
	}

	s.Logger.Debug("Wrote " + target)
	return nil
}

func (s *FileStore) Append(ctx context.Context, path, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.resolve(path)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrDestinationUnwritable, filepath.Dir(target), err)
	}

	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrDestinationUnwritable, path, err)
	}

	_, err = f.WriteString(text)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: appending to %s: %w", ErrDestinationUnwritable, path, err)
	}

	return nil
}
