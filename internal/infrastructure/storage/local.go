package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage writes chat uploads under a directory served at urlPrefix.
type LocalStorage struct {
	root      string
	urlPrefix string
	maxBytes  int64
}

// NewLocalStorage 创建本地附件存储
func NewLocalStorage(root, urlPrefix string, maxBytes int64) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{
		root:      root,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
	}, nil
}

// Root returns the directory files are written to.
func (s *LocalStorage) Root() string {
	return s.root
}

// Save stores r as session/<uuid><ext> and returns its public path. Reads
// past maxBytes fail and leave no file behind.
func (s *LocalStorage) Save(ctx context.Context, sessionID uint, name string, r io.Reader) (string, error) {
	dir := filepath.Join(s.root, fmt.Sprintf("%d", sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stored := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	full := filepath.Join(dir, stored)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	limit := s.maxBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limit {
		err = fmt.Errorf("upload exceeds %d bytes", limit)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(full)
		return "", err
	}
	return fmt.Sprintf("%s/%d/%s", s.urlPrefix, sessionID, stored), nil
}

// Remove deletes a file previously returned by Save. Paths outside the
// storage root are rejected; a missing file is not an error.
func (s *LocalStorage) Remove(ctx context.Context, storedPath string) error {
	rel := strings.TrimPrefix(storedPath, s.urlPrefix+"/")
	if rel == storedPath || rel == "" {
		return fmt.Errorf("path %q is not under %s", storedPath, s.urlPrefix)
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes upload root", storedPath)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
