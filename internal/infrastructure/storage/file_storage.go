package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// attachmentDir is the sub-directory all references live under
const attachmentDir = "documents"

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// LocalFileStorage implements port.AttachmentStore on the local filesystem.
// References are "documents/<uuid><ext>" relative to baseDir.
type LocalFileStorage struct {
	baseDir string
	maxSize int64
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage. maxSize <= 0 disables the size limit.
func NewLocalFileStorage(baseDir string, maxSize int64, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		maxSize: maxSize,
		logger:  logger,
	}
}

// ErrTooLarge is returned when an upload exceeds the configured limit
var ErrTooLarge = port.ErrAttachmentTooLarge

// Store copies content to a fresh reference keeping filename's extension
func (s *LocalFileStorage) Store(ctx context.Context, content io.Reader, filename string) (string, error) {
	ref := path.Join(attachmentDir, uuid.NewString()+sanitizeExt(filename))
	fullPath := s.GetFullPath(ref)

	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(parentDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := content
	if s.maxSize > 0 {
		src = io.LimitReader(content, s.maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if s.maxSize > 0 && n > s.maxSize {
		return "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("ref", ref),
		zap.Int64("size", n))

	return ref, nil
}

// Open returns a reader for ref; the caller closes it
func (s *LocalFileStorage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	fullPath := s.GetFullPath(ref)
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		s.logger.Error("Failed to open file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Exists checks if a file exists for ref
func (s *LocalFileStorage) Exists(ctx context.Context, ref string) bool {
	fullPath := s.GetFullPath(ref)
	if s.validatePath(fullPath) != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// SizeOf returns the size of the file behind ref in bytes
func (s *LocalFileStorage) SizeOf(ctx context.Context, ref string) (int64, error) {
	fullPath := s.GetFullPath(ref)
	if err := s.validatePath(fullPath); err != nil {
		return 0, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size(), nil
}

// Delete removes the file behind ref. Missing files are not an error.
func (s *LocalFileStorage) Delete(ctx context.Context, ref string) error {
	fullPath := s.GetFullPath(ref)
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.logger.Debug("File deleted", zap.String("ref", ref))
	return nil
}

// GetFullPath converts a reference to a filesystem path
func (s *LocalFileStorage) GetFullPath(ref string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(ref))
}

// validatePath checks that the path is safe and within baseDir
func (s *LocalFileStorage) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// Verify interface compliance
var _ port.AttachmentStore = (*LocalFileStorage)(nil)
