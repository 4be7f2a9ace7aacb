package objstore

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore serves objects from a directory tree, mapping keys to relative
// paths. It stands in for a remote bucket in local runs and tests.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Download returns the object's path directly; the tree is already local.
func (s *LocalStore) Download(ctx context.Context, key string) (string, error) {
	p := s.path(key)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("object %s not found: %w", key, err)
	}
	return p, nil
}

func (s *LocalStore) Upload(ctx context.Context, localPath, key string) error {
	dest := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	return copyFile(localPath, dest)
}

func (s *LocalStore) Copy(ctx context.Context, sourceKey, destKey string) error {
	dest := s.path(destKey)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", destKey, err)
	}
	return copyFile(s.path(sourceKey), dest)
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.Walk(s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) Head(ctx context.Context, key string) (*Metadata, error) {
	p := s.path(key)
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("object %s not found: %w", key, err)
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", key, err)
	}

	return &Metadata{
		Key:          key,
		SizeBytes:    info.Size(),
		ETag:         fmt.Sprintf("%x", h.Sum(nil)),
		ContentType:  "application/octet-stream",
		LastModified: info.ModTime(),
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return out.Close()
}
