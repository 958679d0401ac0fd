package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
)

// ErrBlobNotFound is returned by Read for a missing key
var ErrBlobNotFound = errors.New("blob not found")

// LocalBlobStore implements port.BlobStore on the local filesystem. Keys are
// slash separated paths relative to baseDir.
type LocalBlobStore struct {
	baseDir  string
	mediaURL string
	logger   *zap.Logger
}

// NewLocalBlobStore creates a store rooted at baseDir. mediaURL is the public
// prefix under which keys are served, e.g. "/media/".
func NewLocalBlobStore(baseDir, mediaURL string, logger *zap.Logger) *LocalBlobStore {
	return &LocalBlobStore{
		baseDir:  baseDir,
		mediaURL: mediaURL,
		logger:   logger,
	}
}

// Save writes content under key. The file is written to a temporary name
// and renamed so readers never see a partial blob.
func (s *LocalBlobStore) Save(ctx context.Context, key string, content []byte) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories", zap.String("path", dir), zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.logger.Error("Failed to write blob", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	s.logger.Debug("Blob saved", zap.String("key", key), zap.Int("size", len(content)))
	return nil
}

func (s *LocalBlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrBlobNotFound)
	}
	if err != nil {
		s.logger.Error("Failed to read blob", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

func (s *LocalBlobStore) Exists(ctx context.Context, key string) bool {
	fullPath, err := s.resolve(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// Delete removes key. A missing blob is not an error.
func (s *LocalBlobStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("Failed to delete blob", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.logger.Debug("Blob deleted", zap.String("key", key))
	return nil
}

// List returns the blobs stored below prefix, skipping in-flight uploads
func (s *LocalBlobStore) List(ctx context.Context, prefix string) ([]port.BlobInfo, error) {
	root, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var blobs []port.BlobInfo
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		blobs = append(blobs, port.BlobInfo{
			Key:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	return blobs, nil
}

// URL returns the public URL of key
func (s *LocalBlobStore) URL(key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimSuffix(s.mediaURL, "/") + "/" + strings.TrimPrefix(path.Clean("/"+key), "/")
}

// resolve maps a key to a path inside baseDir, rejecting traversal
func (s *LocalBlobStore) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "\x00") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", key)
	}
	return absPath, nil
}

var _ port.BlobStore = (*LocalBlobStore)(nil)
