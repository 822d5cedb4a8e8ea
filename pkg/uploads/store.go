// Package uploads stores product images on local disk.
package uploads

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
)

var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type ImageStore struct {
	dir       string
	urlPrefix string
	maxBytes  int64
	logger    *zap.Logger
}

func NewImageStore(cfg *config.UploadsConfig, logger *zap.Logger) (*ImageStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	return &ImageStore{
		dir:       cfg.Dir,
		urlPrefix: cfg.URLPrefix,
		maxBytes:  cfg.MaxBytes,
		logger:    logger.Named("uploads"),
	}, nil
}

func (s *ImageStore) Dir() string {
	return s.dir
}

func (s *ImageStore) MaxBytes() int64 {
	return s.maxBytes
}

// TooLarge is the error returned for files over the size limit.
func (s *ImageStore) TooLarge() error {
	return apperr.Validation(fmt.Sprintf("File size too large. Maximum %dMB allowed.", s.maxBytes>>20))
}

// Save checks the file's size and sniffed content type, writes it under a
// random name and returns its public URL.
func (s *ImageStore) Save(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.maxBytes {
		return "", s.TooLarge()
	}

	src, err := fh.Open()
	if err != nil {
		return "", apperr.Unexpected(err, "failed to open upload")
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", apperr.Unexpected(err, "failed to read upload")
	}
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return "", apperr.Validation("Only image files are allowed")
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", apperr.Unexpected(err, "failed to read upload")
	}

	name := uuid.NewString() + mtype.Extension()
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperr.Unexpected(err, "failed to store upload")
	}

	// Headers can under-report the size; never write more than the limit.
	n, err := io.Copy(dst, io.LimitReader(src, s.maxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = s.TooLarge()
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		if apperr.KindOf(err) == apperr.KindValidation {
			return "", err
		}
		return "", apperr.Unexpected(err, "failed to store upload")
	}

	s.logger.Info("Image stored", zap.String("name", name), zap.Int64("bytes", n), zap.String("type", mtype.String()))
	return path.Join(s.urlPrefix, name), nil
}
